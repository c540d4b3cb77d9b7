package functions

import "google.golang.org/genai"

// Tool names the model may call.
const (
	CreateMaintenanceTicket = "create_maintenance_ticket"
	CheckBill               = "check_bill"
	BookRoomService         = "book_room_service"
	TransferCall            = "transfer_call"
)

// CreateMaintenanceTicketDeclaration returns the function declaration for Gemini
func CreateMaintenanceTicketDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        CreateMaintenanceTicket,
		Description: "Open a ticket for a problem in the guest's room, such as broken air conditioning, a leak, or missing towels.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"issue_type": {
					Type:        genai.TypeString,
					Description: "Department that handles it",
					Enum:        []string{"Housekeeping", "Engineering", "Concierge"},
				},
				"description": {
					Type:        genai.TypeString,
					Description: "Short description of the problem in English",
				},
			},
			Required: []string{"issue_type", "description"},
		},
	}
}

// CheckBillDeclaration returns the function declaration for Gemini
func CheckBillDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        CheckBill,
		Description: "Look up the current balance of the caller's active booking.",
	}
}

// BookRoomServiceDeclaration returns the function declaration for Gemini
func BookRoomServiceDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        BookRoomService,
		Description: "Place a room-service order for an item that is being served right now.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"item": {
					Type:        genai.TypeString,
					Description: "Menu item name",
				},
				"quantity": {
					Type:        genai.TypeInteger,
					Description: "How many, defaults to 1",
				},
			},
			Required: []string{"item"},
		},
	}
}

// TransferCallDeclaration returns the function declaration for Gemini
func TransferCallDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        TransferCall,
		Description: "Hand the call to a human at the front desk.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"reason": {
					Type:        genai.TypeString,
					Description: "Why the guest needs a person",
				},
			},
			Required: []string{"reason"},
		},
	}
}

// Declarations is the fixed tool catalog, in the order it is shown to the model.
func Declarations() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{
		CreateMaintenanceTicketDeclaration(),
		CheckBillDeclaration(),
		BookRoomServiceDeclaration(),
		TransferCallDeclaration(),
	}
}

// Tools wraps the catalog for a GenerateContent request.
func Tools() []*genai.Tool {
	return []*genai.Tool{
		{FunctionDeclarations: Declarations()},
	}
}
