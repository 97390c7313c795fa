package invoker

import "go.uber.org/fx"

// Module provides the local Exec invoker as an Invoker for fx injection.
var Module = fx.Module("invoker",
	fx.Provide(
		NewExec,
		func(e *Exec) Invoker { return e },
	),
)
