package capability

import "go.uber.org/fx"

// Module provides the prober and toggler for fx injection. It expects an
// invoker.Invoker in the graph.
var Module = fx.Module("capability",
	fx.Provide(NewProber, NewToggler),
)
