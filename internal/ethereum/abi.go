package ethereum

import (
	"io"
	"strings"
)

// Minimal ERC20 ABI, only the methods we call.

func mustERC20ABI() io.Reader {
	return strings.NewReader(`[
		{
			"name": "decimals",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [
				{"name": "", "type": "uint8"}
			]
		},
		{
			"name": "balanceOf",
			"type": "function",
			"stateMutability": "view",
			"inputs": [
				{"name": "owner", "type": "address"}
			],
			"outputs": [
				{"name": "", "type": "uint256"}
			]
		}
	]`)
}
