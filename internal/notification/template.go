package notification

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

var funcs = map[string]any{
	"when": func(t *time.Time) string {
		if t == nil {
			return "soon"
		}
		return t.Format("02 Jan 2006, 15:04 MST")
	},
}

const shippedText = `Hi {{.CustomerName}},

Your order {{.OrderPublicID}} is on its way.
Courier: {{.Courier}}
Tracking ID: {{.TrackingID}}
Estimated delivery: {{when .EstimatedDelivery}}
`

const shippedHTML = `<p>Hi {{.CustomerName}},</p>
<p>Your order <strong>{{.OrderPublicID}}</strong> is on its way.</p>
<table>
<tr><td>Courier</td><td>{{.Courier}}</td></tr>
<tr><td>Tracking ID</td><td>{{.TrackingID}}</td></tr>
<tr><td>Estimated delivery</td><td>{{when .EstimatedDelivery}}</td></tr>
</table>`

const deliveredText = `Hi {{.CustomerName}},

Your order {{.OrderPublicID}} was delivered on {{when .DeliveredAt}}{{if .RiderName}} by {{.RiderName}}{{end}}.
Thank you for shopping with us.
`

const deliveredHTML = `<p>Hi {{.CustomerName}},</p>
<p>Your order <strong>{{.OrderPublicID}}</strong> was delivered on {{when .DeliveredAt}}{{if .RiderName}} by {{.RiderName}}{{end}}.</p>
<p>Thank you for shopping with us.</p>`

type templates struct {
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

var registry = map[Kind]templates{
	KindShipped: {
		subject: "Your order %s has shipped",
		text:    texttemplate.Must(texttemplate.New("shipped").Funcs(funcs).Parse(shippedText)),
		html:    htmltemplate.Must(htmltemplate.New("shipped").Funcs(funcs).Parse(shippedHTML)),
	},
	KindDelivered: {
		subject: "Your order %s was delivered",
		text:    texttemplate.Must(texttemplate.New("delivered").Funcs(funcs).Parse(deliveredText)),
		html:    htmltemplate.Must(htmltemplate.New("delivered").Funcs(funcs).Parse(deliveredHTML)),
	},
}

// Render turns a message into a text+HTML email.
func Render(msg Message) (Email, error) {
	tpl, ok := registry[msg.Kind]
	if !ok {
		return Email{}, fmt.Errorf("notification: no template for %q", msg.Kind)
	}

	var text, html bytes.Buffer
	if err := tpl.text.Execute(&text, msg); err != nil {
		return Email{}, err
	}
	if err := tpl.html.Execute(&html, msg); err != nil {
		return Email{}, err
	}

	return Email{
		To:      msg.To,
		Subject: fmt.Sprintf(tpl.subject, msg.OrderPublicID),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
