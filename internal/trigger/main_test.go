package trigger

import logx "protosched/pkg/logx"

var noLog = logx.Nop()
