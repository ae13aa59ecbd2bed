package game

type Metrics struct {
	Tick     uint64 `json:"tick"`
	Sessions int    `json:"sessions"`

	Phase            int     `json:"phase"`
	PrestigeState    string  `json:"prestige_state"`
	Letters          float64 `json:"letters"`
	Money            float64 `json:"money"`
	LettersDelivered float64 `json:"letters_delivered"`
	Multiplier       float64 `json:"multiplier"`

	ActionsTotal      uint64 `json:"actions_total"`
	RejectedTotal     uint64 `json:"rejected_total"`
	PrestigeTotal     uint64 `json:"prestige_total"`
	SaveDroppedTotal  uint64 `json:"save_dropped_total"`
	StepLogErrorTotal uint64 `json:"step_log_error_total"`
	AuditErrorTotal   uint64 `json:"audit_error_total"`
	SavePending       int    `json:"save_pending"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Inbox     int `json:"inbox"`
	Subscribe int `json:"subscribe"`
	Admin     int `json:"admin"`
}

func (e *Engine) Metrics() Metrics {
	if e == nil {
		return Metrics{}
	}
	m, ok := e.metrics.Load().(Metrics)
	if !ok {
		return Metrics{}
	}
	return m
}
