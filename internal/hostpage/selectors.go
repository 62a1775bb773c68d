package hostpage

import "fmt"

// Selectors identifies the host page affordances the per-item script uses.
// Any change to the host page markup breaks some of these; every field can be
// overridden from config without a rebuild.
type Selectors struct {
	NewConversation   string `json:"new_conversation,omitempty" yaml:"new_conversation,omitempty"`
	ChatInput         string `json:"chat_input,omitempty" yaml:"chat_input,omitempty"`
	Send              string `json:"send,omitempty" yaml:"send,omitempty"`
	ImageMessage      string `json:"image_message,omitempty" yaml:"image_message,omitempty"`
	MessageImage      string `json:"message_image,omitempty" yaml:"message_image,omitempty"`
	ConversationTitle string `json:"conversation_title,omitempty" yaml:"conversation_title,omitempty"`
	RenameAction      string `json:"rename_action,omitempty" yaml:"rename_action,omitempty"`
	RenameInput       string `json:"rename_input,omitempty" yaml:"rename_input,omitempty"`
	RenameConfirm     string `json:"rename_confirm,omitempty" yaml:"rename_confirm,omitempty"`
	DetailImage       string `json:"detail_image,omitempty" yaml:"detail_image,omitempty"`
	DetailImageAttr   string `json:"detail_image_attr,omitempty" yaml:"detail_image_attr,omitempty"`
	DetailClose       string `json:"detail_close,omitempty" yaml:"detail_close,omitempty"`
}

// DefaultSelectors returns the selectors for the current host page markup.
func DefaultSelectors() Selectors {
	return Selectors{
		NewConversation:   `[data-testid="create_conversation_button"]`,
		ChatInput:         `textarea[data-testid="chat_input_input"]`,
		Send:              `#flow-end-msg-send`,
		ImageMessage:      `[data-testid="receive_message"]:has([data-testid="message_image_content"])`,
		MessageImage:      `[data-testid="message_image_content"] img`,
		ConversationTitle: `[data-testid="chat_header_title"]`,
		RenameAction:      `[data-testid="chat_header_title_edit"]`,
		RenameInput:       `[data-testid="chat_header_title_input"] input`,
		RenameConfirm:     `[data-testid="chat_header_title_confirm"]`,
		DetailImage:       `[data-testid="image_preview_modal"] img`,
		DetailImageAttr:   "src",
		DetailClose:       `[data-testid="image_preview_close"]`,
	}
}

// Merge returns s with every non-empty field of override applied.
func (s Selectors) Merge(override Selectors) Selectors {
	pick := func(base, o string) string {
		if o != "" {
			return o
		}
		return base
	}
	return Selectors{
		NewConversation:   pick(s.NewConversation, override.NewConversation),
		ChatInput:         pick(s.ChatInput, override.ChatInput),
		Send:              pick(s.Send, override.Send),
		ImageMessage:      pick(s.ImageMessage, override.ImageMessage),
		MessageImage:      pick(s.MessageImage, override.MessageImage),
		ConversationTitle: pick(s.ConversationTitle, override.ConversationTitle),
		RenameAction:      pick(s.RenameAction, override.RenameAction),
		RenameInput:       pick(s.RenameInput, override.RenameInput),
		RenameConfirm:     pick(s.RenameConfirm, override.RenameConfirm),
		DetailImage:       pick(s.DetailImage, override.DetailImage),
		DetailImageAttr:   pick(s.DetailImageAttr, override.DetailImageAttr),
		DetailClose:       pick(s.DetailClose, override.DetailClose),
	}
}

// Missing lists the required selectors that are empty. DetailClose is
// optional.
func (s Selectors) Missing() []string {
	required := []struct {
		name  string
		value string
	}{
		{"new_conversation", s.NewConversation},
		{"chat_input", s.ChatInput},
		{"send", s.Send},
		{"image_message", s.ImageMessage},
		{"message_image", s.MessageImage},
		{"conversation_title", s.ConversationTitle},
		{"rename_action", s.RenameAction},
		{"rename_input", s.RenameInput},
		{"rename_confirm", s.RenameConfirm},
		{"detail_image", s.DetailImage},
		{"detail_image_attr", s.DetailImageAttr},
	}
	var out []string
	for _, r := range required {
		if r.value == "" {
			out = append(out, r.name)
		}
	}
	return out
}

func (s Selectors) String() string {
	return fmt.Sprintf("new=%s input=%s send=%s images=%s", s.NewConversation, s.ChatInput, s.Send, s.ImageMessage)
}
