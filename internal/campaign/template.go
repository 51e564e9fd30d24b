package campaign

import (
	"strings"

	"github.com/example/sms-campaign/internal/models"
)

// Render substitutes recipient fields into the message template. {Name} and
// {Phone} are replaced with the recipient's values; any other placeholder
// passes through verbatim. The function is pure and safe for concurrent use.
func Render(template string, r models.Recipient) string {
	body := strings.ReplaceAll(template, "{Name}", r.Name)
	return strings.ReplaceAll(body, "{Phone}", r.Phone)
}
