package ws

// ClientFrame is a chat message sent by the browser
type ClientFrame struct {
	Content string `json:"content"`
}

// ErrorBody mirrors the error envelope of the HTTP API
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorFrame reports a failed ClientFrame. The connection stays open.
type ErrorFrame struct {
	Error ErrorBody `json:"error"`
}
