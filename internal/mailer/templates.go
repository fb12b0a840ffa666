package mailer

// Shared outer wrapper. Per-kind bodies are injected as {{content}}.
const wrapper = `<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background:#f4f4f7;font-family:Arial,Helvetica,sans-serif;">
  <table role="presentation" width="100%" cellpadding="0" cellspacing="0">
    <tr><td align="center" style="padding:24px;">
      <table role="presentation" width="600" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;overflow:hidden;">
        <tr><td style="background:#1a2b4c;padding:20px 32px;">
          <h1 style="color:#ffffff;margin:0;font-size:22px;">LanzaWeb Hosting</h1>
        </td></tr>
        <tr><td style="padding:32px;color:#333333;font-size:15px;line-height:1.6;">
{{content}}
        </td></tr>
        <tr><td style="background:#f0f1f5;padding:16px 32px;color:#888888;font-size:12px;">
          <p style="margin:0;">LanzaWeb Hosting &middot; soporte@lanzaweb.com.ar</p>
          <p style="margin:4px 0 0;">&copy; {{year}} LanzaWeb. Todos los derechos reservados.</p>
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`

type template struct {
	Subject string
	Body    string
}

var templates = map[Kind]template{
	KindTesting: {
		Subject: "Prueba de correo - LanzaWeb",
		Body: `<p>Hola {{name}},</p>
<p>Este es un correo de prueba del sistema de notificaciones de LanzaWeb.</p>
<p>Si lo recibiste, el transporte de correo funciona correctamente.</p>`,
	},
	KindWelcome: {
		Subject: "¡Bienvenido a LanzaWeb, {{name}}!",
		Body: `<p>Hola {{name}},</p>
<p>¡Gracias por elegir LanzaWeb para tu proyecto <strong>{{domain}}</strong>!</p>
<p>Recibimos tu pedido <strong>{{order_id}}</strong> y te avisaremos apenas tu hosting esté listo.</p>
<p>{{notes}}</p>`,
	},
	KindCredentials: {
		Subject: "Tu hosting está listo - {{domain}}",
		Body: `<p>Hola {{name}},</p>
<p>¡Tu cuenta de hosting para <strong>{{domain}}</strong> ya está activa!</p>
<table cellpadding="6" style="background:#f7f8fa;border-radius:6px;font-size:14px;">
  <tr><td><strong>Panel de control:</strong></td><td><a href="{{panel_url}}">{{panel_url}}</a></td></tr>
  <tr><td><strong>Usuario:</strong></td><td>{{username}}</td></tr>
  <tr><td><strong>Contraseña temporal:</strong></td><td>{{password}}</td></tr>
  <tr><td><strong>Plan:</strong></td><td>{{plan}}</td></tr>
</table>
<p>Por seguridad, cambiá la contraseña en tu primer ingreso al panel.</p>`,
	},
	KindPaymentConfirmation: {
		Subject: "Pago recibido - pedido {{order_id}}",
		Body: `<p>Hola {{name}},</p>
<p>Confirmamos el pago de <strong>{{amount}} {{currency}}</strong> por tu pedido <strong>{{order_id}}</strong>.</p>
<p>Ya estamos preparando tu hosting; en breve vas a recibir tus credenciales de acceso.</p>`,
	},
}
