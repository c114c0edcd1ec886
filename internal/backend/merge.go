package backend

import "github.com/skein-dev/skein/pkg/models"

// ToolCallFragment is one streamed tool-call delta as providers emit
// them: the first fragment of a call carries id and name, later
// fragments append argument text. Index is the provider's call slot
// when ids are absent.
type ToolCallFragment struct {
	Index     *int
	ID        string
	Name      string
	Arguments string
}

// ToolCallAccumulator merges streamed tool-call fragments into complete
// calls. Fragments correlate by id when present, by index otherwise,
// and a bare argument fragment continues the most recent call.
// Argument text is concatenated byte-exact, never reparsed.
type ToolCallAccumulator struct {
	order   []*pendingCall
	byID    map[string]*pendingCall
	byIndex map[int]*pendingCall
	last    *pendingCall
}

type pendingCall struct {
	id   string
	name string
	args []byte
}

func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{
		byID:    make(map[string]*pendingCall),
		byIndex: make(map[int]*pendingCall),
	}
}

// Add merges one fragment.
func (a *ToolCallAccumulator) Add(frag ToolCallFragment) {
	call := a.resolve(frag)
	if call == nil {
		return
	}
	if frag.ID != "" {
		call.id = frag.ID
		a.byID[frag.ID] = call
	}
	if frag.Name != "" {
		call.name = frag.Name
	}
	call.args = append(call.args, frag.Arguments...)
	a.last = call
}

func (a *ToolCallAccumulator) resolve(frag ToolCallFragment) *pendingCall {
	if frag.ID != "" {
		if call, ok := a.byID[frag.ID]; ok {
			return call
		}
	}
	if frag.Index != nil {
		if call, ok := a.byIndex[*frag.Index]; ok {
			return call
		}
	}
	if frag.ID == "" && frag.Index == nil {
		// Continuation fragment: belongs to the call in progress.
		return a.last
	}

	call := &pendingCall{}
	a.order = append(a.order, call)
	if frag.Index != nil {
		a.byIndex[*frag.Index] = call
	}
	return call
}

// Calls returns the merged calls in first-seen order. Calls that never
// received a name are dropped.
func (a *ToolCallAccumulator) Calls() []models.ToolCall {
	out := make([]models.ToolCall, 0, len(a.order))
	for _, call := range a.order {
		if call.name == "" {
			continue
		}
		out = append(out, models.ToolCall{
			ID:        call.id,
			Name:      call.name,
			Arguments: string(call.args),
		})
	}
	return out
}
