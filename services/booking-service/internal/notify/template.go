package notify

import (
	"strconv"
	"strings"
	"time"
)

const DefaultTemplate = "Hi {client_name}, this is a reminder of your {service_name} appointment with {professional_name} on {date} at {time} ({hours_before}h from now)."

// TemplateData fills the placeholders of a reminder template.
type TemplateData struct {
	ClientName       string
	ServiceName      string
	ProfessionalName string
	Start            time.Time // already in the professional's location
	HoursBefore      int
}

// Render substitutes the known placeholders. Unknown placeholders are left as written.
func Render(tmpl string, data TemplateData) string {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultTemplate
	}
	r := strings.NewReplacer(
		"{client_name}", data.ClientName,
		"{service_name}", data.ServiceName,
		"{professional_name}", data.ProfessionalName,
		"{date}", data.Start.Format("Mon, 02 Jan 2006"),
		"{time}", data.Start.Format("15:04"),
		"{hours_before}", strconv.Itoa(data.HoursBefore),
	)
	return r.Replace(tmpl)
}
