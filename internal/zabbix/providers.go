package zabbix

import "go.uber.org/fx"

// Module provides the Zabbix sender and reporter for fx injection.
var Module = fx.Module("zabbix",
	fx.Provide(NewSender, NewReporter),
)
