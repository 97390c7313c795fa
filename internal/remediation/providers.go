package remediation

import "go.uber.org/fx"

// Module provides the executor and orchestrator. It expects Deps in the graph.
var Module = fx.Module("remediation",
	fx.Provide(NewExecutor, NewOrchestrator),
)
