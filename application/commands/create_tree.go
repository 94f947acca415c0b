package commands

// CreateTreeCommand creates a dialogue or buffer loom tree, its root
// node, and an initial path owned by the creating agent
type CreateTreeCommand struct {
	Title          string `validate:"required,max=512"`
	Description    string `validate:"max=4096"`
	SystemContext  string `validate:"max=65536"`
	Mode           string `validate:"required,oneof=dialogue buffer"`
	AgentID        string `validate:"required,uuid"`
	InitialContent string `validate:"required"`
}

// Validate checks the command's fields
func (c CreateTreeCommand) Validate() error {
	return runValidation(c)
}
