// Package prompt assembles the system instruction for one call turn from the
// hotel facts, the caller's profile and the hotel-local time.
//
// Build is deterministic: the same inputs always give byte-identical output.
package prompt

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/room4-2/concierge/config"
	"github.com/room4-2/concierge/pms"

	"google.golang.org/genai"
)

const persona = `## Identity & Role

You are the voice concierge of **%s**, answering guests over the phone. You are polite, efficient, warm and calm, the way a five-star front desk sounds.

- Detect the language the guest is speaking and always reply in that same language.
- Keep every reply to one or two short sentences. You are speaking on a phone line; long monologues are bad for voice.
- Never invent facts about the hotel. If something is not listed below, say you will check with the front desk.
- Never read out another guest's details.
- When the guest asks for something you can do with a tool, call the tool instead of promising it.
- If the guest is upset, asks for a person, or the request is beyond your tools, call transfer_call.
`

// OutputContract is the reply format the normalizer expects back.
const OutputContract = `## Output Format

Reply with exactly one JSON object and nothing else, no markdown:
{"text": "<what to say to the guest>", "language_code": "<two-letter ISO 639-1 code of the reply>", "transfer": <true only if the call must go to a human>}
`

// Input is the per-turn context.
type Input struct {
	Guest pms.Guest
	// Room is the caller's active booking room, empty when there is none.
	Room string
	Now  time.Time
}

// Builder renders instructions for one hotel.
type Builder struct {
	hotel *config.Hotel
	tools []*genai.FunctionDeclaration
	loc   *time.Location
}

// NewBuilder renders instructions for hotel, listing the given tools.
func NewBuilder(hotel *config.Hotel, tools []*genai.FunctionDeclaration) *Builder {
	if hotel == nil {
		hotel = config.DefaultHotel()
	}
	return &Builder{hotel: hotel, tools: tools, loc: hotel.Location()}
}

// Build returns the system instruction for a turn.
func (b *Builder) Build(in Input) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, persona, b.hotel.Name)
	sb.WriteString("\n")
	b.writeGuest(&sb, in)
	sb.WriteString("\n")
	local := in.Now.In(b.loc)
	b.writeHotel(&sb)
	sb.WriteString("\n")
	b.writeMenu(&sb, local)
	sb.WriteString("\n")
	b.writeTools(&sb)
	sb.WriteString("\n")
	sb.WriteString(OutputContract)

	return sb.String()
}

func (b *Builder) writeGuest(sb *strings.Builder, in Input) {
	sb.WriteString("## Caller\n\n")

	g := in.Guest
	if g.Name == "" && g.LastOrder == "" && in.Room == "" && g.Visits <= 1 {
		sb.WriteString("- Nothing is on file for this caller yet. Do not guess their name or room.\n")
		return
	}
	if g.Name != "" {
		fmt.Fprintf(sb, "- Name: %s. Greet them by name.\n", g.Name)
	}
	if in.Room != "" {
		fmt.Fprintf(sb, "- Staying in room %s.\n", in.Room)
	} else {
		sb.WriteString("- No active booking on file.\n")
	}
	if g.LastOrder != "" {
		fmt.Fprintf(sb, "- Last room-service order: %s. You may offer it again.\n", g.LastOrder)
	}
	if g.Visits > 1 {
		fmt.Fprintf(sb, "- Returning caller, %d calls so far.\n", g.Visits)
	}
}

func (b *Builder) writeHotel(sb *strings.Builder) {
	sb.WriteString("## Hotel Facts\n\n")
	if len(b.hotel.Amenities) > 0 {
		fmt.Fprintf(sb, "- Amenities: %s.\n", strings.Join(b.hotel.Amenities, ", "))
	}
	for _, h := range b.hotel.Hours {
		fmt.Fprintf(sb, "- %s: %s\n", h.Name, h.Value)
	}
	if b.hotel.Wifi.Network != "" {
		fmt.Fprintf(sb, "- Wi-Fi network %q, password %q.\n", b.hotel.Wifi.Network, b.hotel.Wifi.Password)
	}
}

func (b *Builder) writeMenu(sb *strings.Builder, local time.Time) {
	fmt.Fprintf(sb, "## Time & Room Service\n\nIt is %s, %s (%s) at the hotel.\n",
		local.Format("Monday"), local.Format("15:04"), partOfDay(local))

	var open, closed []config.MenuSection
	for _, section := range b.hotel.Menu {
		if section.AvailableAt(local) {
			open = append(open, section)
		} else {
			closed = append(closed, section)
		}
	}

	if len(open) == 0 {
		sb.WriteString("\nRoom service is closed right now. Do not take food orders.\n")
	} else {
		sb.WriteString("\nServing now (only these items can be ordered):\n")
		for _, section := range open {
			fmt.Fprintf(sb, "- %s until %s: ", section.Name, section.Closes)
			items := make([]string, 0, len(section.Items))
			for _, item := range section.Items {
				items = append(items, fmt.Sprintf("%s $%.2f", item.Name, item.Price))
			}
			sb.WriteString(strings.Join(items, "; "))
			sb.WriteString("\n")
		}
	}
	if len(closed) > 0 {
		sb.WriteString("\nNot served right now:\n")
		for _, section := range closed {
			fmt.Fprintf(sb, "- %s, served %s-%s\n", section.Name, section.Opens, section.Closes)
		}
	}
}

func (b *Builder) writeTools(sb *strings.Builder) {
	sb.WriteString("## Tools\n\n")
	if len(b.tools) == 0 {
		sb.WriteString("No tools are available on this line.\n")
		return
	}
	for _, fd := range b.tools {
		fmt.Fprintf(sb, "- %s(%s): %s\n", fd.Name, paramList(fd), fd.Description)
	}
}

// paramList lists required parameters in declared order, then optional ones
// alphabetically with a trailing "?".
func paramList(fd *genai.FunctionDeclaration) string {
	if fd.Parameters == nil || len(fd.Parameters.Properties) == 0 {
		return ""
	}

	seen := make(map[string]bool, len(fd.Parameters.Properties))
	names := make([]string, 0, len(fd.Parameters.Properties))
	for _, name := range fd.Parameters.Required {
		if _, ok := fd.Parameters.Properties[name]; ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	var optional []string
	for name := range fd.Parameters.Properties {
		if !seen[name] {
			optional = append(optional, name)
		}
	}
	sort.Strings(optional)
	for _, name := range optional {
		names = append(names, name+"?")
	}
	return strings.Join(names, ", ")
}

func partOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h < 5:
		return "night"
	case h < 12:
		return "morning"
	case h < 17:
		return "afternoon"
	case h < 22:
		return "evening"
	default:
		return "night"
	}
}
