package httpx

type StartPhoneCallRequest struct {
	CallerName     string `json:"caller_name"`
	CallerNumber   string `json:"caller_number"`
	ReceiverName   string `json:"receiver_name"`
	ReceiverNumber string `json:"receiver_number"`
}

type FireTriggerRequest struct {
	Trigger string `json:"trigger"`
	// Parameter carries the trigger's single typed parameter, when it has
	// one: the receiver number for dial, the volume level for setVolume.
	Parameter any `json:"parameter,omitempty"`
}

type SagaResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

type PhoneCallResponse struct {
	ID             string `json:"id"`
	State          string `json:"state"`
	CallerName     string `json:"caller_name,omitempty"`
	CallerNumber   string `json:"caller_number,omitempty"`
	ReceiverName   string `json:"receiver_name,omitempty"`
	ReceiverNumber string `json:"receiver_number,omitempty"`
	CallStartedAt  string `json:"call_started_at,omitempty"`
	CallDurationMS int64  `json:"call_duration_ms"`
	IsMissedCall   bool   `json:"is_missed_call"`
	Muted          bool   `json:"muted"`
	Volume         int    `json:"volume"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
