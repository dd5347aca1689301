package contact

import (
	"errors"
	"fmt"
	"sync"
)

// Field identifies one input of the contact form.
type Field string

const (
	FieldName    Field = "name"
	FieldEmail   Field = "email"
	FieldSubject Field = "subject"
	FieldMessage Field = "message"
)

var ErrUnknownField = errors.New("contact: unknown field")

// Fields are the four values a visitor types into the form.
type Fields struct {
	Name    string `form:"name" binding:"required,max=200"`
	Email   string `form:"email" binding:"required,email,max=320"`
	Subject string `form:"subject" binding:"required,max=300"`
	Message string `form:"message" binding:"required,max=5000"`
}

// Payload maps the fields onto the relay's template parameters.
func (f Fields) Payload() Payload {
	return Payload{
		FromName:  f.Name,
		FromEmail: f.Email,
		Subject:   f.Subject,
		Message:   f.Message,
	}
}

// Form holds the state of one mounted contact form.
type Form struct {
	mu         sync.Mutex
	fields     Fields
	submitting bool
	unmounted  bool
}

func NewForm() *Form {
	return &Form{}
}

// Set writes a single field. Later writes to the same field replace earlier
// ones and never touch the other fields.
func (f *Form) Set(field Field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch field {
	case FieldName:
		f.fields.Name = value
	case FieldEmail:
		f.fields.Email = value
	case FieldSubject:
		f.fields.Subject = value
	case FieldMessage:
		f.fields.Message = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// Fill sets every field at once, as a browser post does.
func (f *Form) Fill(v Fields) {
	f.mu.Lock()
	f.fields = v
	f.mu.Unlock()
}

func (f *Form) Fields() Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

func (f *Form) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// Unmount marks the view owning the form as gone. Results of sends still in
// flight are dropped afterwards.
func (f *Form) Unmount() {
	f.mu.Lock()
	f.unmounted = true
	f.mu.Unlock()
}

func (f *Form) Mounted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unmounted
}

// begin enters the submitting state and snapshots the fields to send.
func (f *Form) begin() Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = true
	return f.fields
}

// resolve applies the outcome of a send. It reports false, leaving the form
// untouched, when the form was unmounted while the send was in flight.
func (f *Form) resolve(sent bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unmounted {
		return false
	}
	f.submitting = false
	if sent {
		f.fields = Fields{}
	}
	return true
}
