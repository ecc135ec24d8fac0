package model

// ExitReason says why a position was closed.
// Keep these values stable; they are intended for CSV output.
type ExitReason string

const (
	ExitStopLoss ExitReason = "stop_loss"
	ExitRSI      ExitReason = "rsi_exit"
	ExitTimeStop ExitReason = "time_stop"
)
