package ui

// Prompter defines interface for user interaction
type Prompter interface {
	ConfirmOverwrite(path string) (bool, error)
	SelectFormat(formats []string) (string, error)
}

// DefaultPrompter implements the actual prompting logic
type DefaultPrompter struct{}

// ConfirmOverwrite asks before replacing an existing file
func (p *DefaultPrompter) ConfirmOverwrite(path string) (bool, error) {
	return ConfirmOverwrite(path)
}

// SelectFormat prompts user to pick an output format
func (p *DefaultPrompter) SelectFormat(formats []string) (string, error) {
	return SelectFormat(formats)
}

// MockPrompter for testing
type MockPrompter struct {
	Overwrite         bool
	OverwriteError    error
	SelectedFormat    string
	FormatSelectError error

	// Call tracking
	ConfirmOverwriteCalled bool
	ConfirmedPath          string
	SelectFormatCalled     bool
	OfferedFormats         []string
}

// ConfirmOverwrite mocks overwrite confirmation
func (m *MockPrompter) ConfirmOverwrite(path string) (bool, error) {
	m.ConfirmOverwriteCalled = true
	m.ConfirmedPath = path
	return m.Overwrite, m.OverwriteError
}

// SelectFormat mocks format selection
func (m *MockPrompter) SelectFormat(formats []string) (string, error) {
	m.SelectFormatCalled = true
	m.OfferedFormats = formats
	return m.SelectedFormat, m.FormatSelectError
}
