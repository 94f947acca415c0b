package commands

// SendTurnCommand drives one human→model exchange on a path: the human
// prompt becomes a durable node immediately, then the model agent is
// invoked and its completion becomes a verified model node
type SendTurnCommand struct {
	PathID       string `validate:"required,uuid"`
	HumanAgentID string `validate:"required,uuid"`
	ModelAgentID string `validate:"required,uuid"`
	Prompt       string `validate:"required"`
	Stream       bool
}

// Validate checks the command's fields
func (c SendTurnCommand) Validate() error {
	return runValidation(c)
}
