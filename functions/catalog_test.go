package functions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeclarations(t *testing.T) {
	decls := Declarations()

	names := make([]string, 0, len(decls))
	for _, d := range decls {
		names = append(names, d.Name)
		assert.NotEmpty(t, d.Description, d.Name)
	}
	assert.Equal(t, []string{CreateMaintenanceTicket, CheckBill, BookRoomService, TransferCall}, names)

	ticket := CreateMaintenanceTicketDeclaration()
	assert.ElementsMatch(t, []string{"issue_type", "description"}, ticket.Parameters.Required)
	assert.Nil(t, CheckBillDeclaration().Parameters)
	assert.Equal(t, []string{"item"}, BookRoomServiceDeclaration().Parameters.Required)

	tools := Tools()
	assert.Len(t, tools, 1)
	assert.Len(t, tools[0].FunctionDeclarations, 4)
}
