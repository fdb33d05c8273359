package errors

func (d Definition) Error() string {
	return d.Message
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
}

// 下游依赖错误。
var (
	DownstreamUnavailable = Definition{Code: "DOWNSTREAM_UNAVAILABLE", Message: "Downstream dependency unavailable"}
	DownstreamTimeout     = Definition{Code: "DOWNSTREAM_TIMEOUT", Message: "Downstream dependency timed out"}
	DownstreamBadResponse = Definition{Code: "DOWNSTREAM_BAD_RESPONSE", Message: "Downstream dependency returned an invalid response"}
)

// 通用错误。
var (
	InternalError = Definition{Code: "INTERNAL_SERVER_ERROR", Message: "Internal server error"}
)
