package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// AccountID records the account identifier under the key "account_id".
func AccountID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("account_id", id)
}

// DocumentID records the document identifier under the key "document_id".
func DocumentID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("document_id", id)
}

// ReconcileManual flags a failure that leaves provider and local state out
// of sync and needs operator reconciliation. Alerts key on reconcile=manual.
func ReconcileManual() slog.Attr {
	return slog.String("reconcile", "manual")
}

// Event records a billing event name under the key "event".
func Event(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("event", name)
}
