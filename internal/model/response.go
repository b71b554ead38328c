package model

// ErrorResponse defines error response structure.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// CallbackAck is the acknowledgement envelope the provider expects for every push.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// CallbackAccepted is the ack returned for every callback, whatever the outcome.
var CallbackAccepted = CallbackAck{ResultCode: 0, ResultDesc: "Success"}
