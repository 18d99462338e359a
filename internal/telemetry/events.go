package telemetry

// Event names tracked via Client.Track. Every cobra command reports
// EventCommandExecuted on exit from cmd/increco's Execute;
// the reconcile loop reports the two outcome-specific events below it
// so fleet-wide dashboards can tell a completed cycle from a bail-out
// without parsing the generic command properties.
const (
	EventCommandExecuted        = "command_executed"
	EventReconcileApplied       = "reconcile_applied"
	EventFullReanalysisRequired = "full_reanalysis_required"
)
