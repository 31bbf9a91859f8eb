package console

import "fmt"

// WhatIfConsole decorates another Console, prefixing every reported action
// to make clear nothing was actually executed (spec.md §9: "real and
// what-if implementations are plug-in").
type WhatIfConsole struct {
	Inner Console
}

func (c WhatIfConsole) CreateLog(name string) (Log, error) { return c.Inner.CreateLog(name) }

func (c WhatIfConsole) ReportStarting(target string) {
	c.Inner.ReportStarting(target)
}

func (c WhatIfConsole) ReportApplying(target, what string) {
	c.Inner.ReportApplying(target, fmt.Sprintf("[what-if] %s", what))
}

func (c WhatIfConsole) ReportApplied(target, what string) {
	c.Inner.ReportApplied(target, fmt.Sprintf("[what-if] %s", what))
}

func (c WhatIfConsole) ReportProblem(target, message string) {
	c.Inner.ReportProblem(target, message)
}
