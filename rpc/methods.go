package rpc

// Method names for the Ethereum JSON-RPC surface this gateway speaks.
const (
	MethodGetLogs               = "eth_getLogs"
	MethodGetBlockByNumber      = "eth_getBlockByNumber"
	MethodGetTransactionByHash  = "eth_getTransactionByHash"
	MethodGetTransactionReceipt = "eth_getTransactionReceipt"
	MethodGetBalance            = "eth_getBalance"
	MethodGetTransactionCount   = "eth_getTransactionCount"
	MethodEstimateGas           = "eth_estimateGas"
	MethodCall                  = "eth_call"
	MethodSendRawTransaction    = "eth_sendRawTransaction"
	MethodBlockNumber           = "eth_blockNumber"
	MethodGasPrice              = "eth_gasPrice"
	MethodAccounts              = "eth_accounts"
)
