package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		params   map[string]string
		expected string
	}{
		{
			name:     "substitutes known placeholders",
			text:     "Hello ${recipientFirstName}, alarm ${alarmType} fired",
			params:   map[string]string{"recipientFirstName": "Alice", "alarmType": "HighTemperature"},
			expected: "Hello Alice, alarm HighTemperature fired",
		},
		{
			name:     "unknown placeholders stay untouched",
			text:     "Hello ${recipientFirstName}, device ${deviceName}",
			params:   map[string]string{"recipientFirstName": "Bob"},
			expected: "Hello Bob, device ${deviceName}",
		},
		{
			name:     "no params leaves text unchanged",
			text:     "Hello ${recipientFirstName}",
			params:   nil,
			expected: "Hello ${recipientFirstName}",
		},
		{
			name:     "empty value substitutes to empty",
			text:     "Hi ${recipientLastName}!",
			params:   map[string]string{"recipientLastName": ""},
			expected: "Hi !",
		},
		{
			name:     "repeated placeholder substitutes everywhere",
			text:     "${x} and ${x}",
			params:   map[string]string{"x": "y"},
			expected: "y and y",
		},
		{
			name:     "text without placeholders",
			text:     "plain text",
			params:   map[string]string{"x": "y"},
			expected: "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, RenderTemplate(tt.text, tt.params))
		})
	}
}

func TestProcessingContext_TemplateContext(t *testing.T) {
	t.Parallel()

	pctx := NewProcessingContext(testTenantID(), &NotificationRequest{
		Info: map[string]string{"alarmType": "HighTemperature", "recipientEmail": "override@example.com"},
	}, nil, nil)

	params := pctx.TemplateContext(Recipient{
		Email:     "alice@example.com",
		FirstName: "Alice",
		LastName:  "Smith",
	})

	// Request info wins over recipient attributes on collision.
	assert.Equal(t, "override@example.com", params["recipientEmail"])
	assert.Equal(t, "Alice", params["recipientFirstName"])
	assert.Equal(t, "Smith", params["recipientLastName"])
	assert.Equal(t, "HighTemperature", params["alarmType"])
}
