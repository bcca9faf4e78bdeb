package mirrornode

// contractResultResponse is the subset of /api/v1/contracts/results/{hash} we use.
// Example response:
//
//	{
//	  "hash": "0x5a2c...e4f1",
//	  "result": "SUCCESS",
//	  "timestamp": "1700000001.123456789"
//	}
type contractResultResponse struct {
	Hash      string `json:"hash"`
	Result    string `json:"result"`
	Timestamp string `json:"timestamp"`
}

// transactionsResponse is the body of /api/v1/transactions/{id}.
// Example response:
//
//	{
//	  "transactions": [{
//	    "transaction_id": "0.0.1234-1700000000-000000001",
//	    "result": "SUCCESS",
//	    "consensus_timestamp": "1700000001.123456789",
//	    "token_transfers": [
//	      {"token_id": "0.0.429274", "account": "0.0.1234", "amount": -10500000, "is_approval": false}
//	    ]
//	  }]
//	}
type transactionsResponse struct {
	Transactions []transactionResponse `json:"transactions"`
}

type transactionResponse struct {
	TransactionID      string                  `json:"transaction_id"`
	Result             string                  `json:"result"`
	ConsensusTimestamp string                  `json:"consensus_timestamp"`
	TokenTransfers     []tokenTransferResponse `json:"token_transfers"`
}

type tokenTransferResponse struct {
	TokenID    string `json:"token_id"`
	Account    string `json:"account"`
	Amount     *int64 `json:"amount"`
	IsApproval bool   `json:"is_approval"`
}
