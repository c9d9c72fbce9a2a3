package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

type Client struct {
	rpc        *ethclient.Client
	privateKey *ecdsa.PrivateKey
	wallet     common.Address
	chainID    *big.Int
	gasLimit   uint64
	gasMul     float64

	erc20ABI abi.ABI

	decMu    sync.Mutex
	decimals map[common.Address]int
}

func NewClient(rpcURL, privateKeyHex string, chainID int64, gasLimit int, gasMultiplier float64) (*Client, error) {
	rpc, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}

	pkHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := crypto.HexToECDSA(pkHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	eABI, err := abi.JSON(mustERC20ABI())
	if err != nil {
		return nil, fmt.Errorf("parse ERC20 ABI: %w", err)
	}

	addr := crypto.PubkeyToAddress(pk.PublicKey)

	return &Client{
		rpc:        rpc,
		privateKey: pk,
		wallet:     addr,
		chainID:    big.NewInt(chainID),
		gasLimit:   uint64(gasLimit),
		gasMul:     gasMultiplier,
		erc20ABI:   eABI,
		decimals:   make(map[common.Address]int),
	}, nil
}

func (c *Client) WalletAddress() common.Address { return c.wallet }
func (c *Client) Close()                        { c.rpc.Close() }

func (c *Client) ETHBalance(ctx context.Context) (*big.Int, error) {
	return c.rpc.BalanceAt(ctx, c.wallet, nil)
}

func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	// Apply multiplier
	mul := new(big.Float).SetFloat64(c.gasMul)
	adjusted := new(big.Float).Mul(new(big.Float).SetInt(price), mul)
	result, _ := adjusted.Int(nil)
	return result, nil
}

func (c *Client) Nonce(ctx context.Context) (uint64, error) {
	return c.rpc.PendingNonceAt(ctx, c.wallet)
}

// SendCalldata signs a prebuilt aggregator transaction payload and
// broadcasts it, returning the tx hash. A gas of 0 falls back to the
// configured default limit.
func (c *Client) SendCalldata(ctx context.Context, to string, value *big.Int, data []byte, gas uint64) (string, error) {
	nonce, err := c.Nonce(ctx)
	if err != nil {
		return "", fmt.Errorf("get nonce: %w", err)
	}
	gasPrice, err := c.GasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("get gas price: %w", err)
	}
	if gas == 0 {
		gas = c.gasLimit
	}
	if value == nil {
		value = big.NewInt(0)
	}

	target := common.HexToAddress(to)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &target,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})

	signer := types.NewEIP155Signer(c.chainID)
	signed, err := types.SignTx(tx, signer, c.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}

	if err := c.rpc.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send tx: %w", err)
	}

	return signed.Hash().Hex(), nil
}

// WaitForReceipt polls for the transaction receipt a bounded number of
// times. It returns an error if the transaction reverted or if the bound
// is exhausted before the transaction lands.
func (c *Client) WaitForReceipt(ctx context.Context, txHash string, polls int, interval time.Duration) error {
	if polls <= 0 {
		polls = 24
	}
	hash := common.HexToHash(txHash)

	for i := 0; i < polls; i++ {
		receipt, err := c.rpc.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				return nil
			}
			return fmt.Errorf("transaction %s reverted", txHash)
		}
		if !errors.Is(err, goethereum.NotFound) {
			return fmt.Errorf("fetch receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	return fmt.Errorf("transaction %s not confirmed after %d polls", txHash, polls)
}

// TokenDecimals reads an ERC-20 token's decimals() and caches the
// result. Decimals are immutable post-deployment, so entries never expire.
func (c *Client) TokenDecimals(ctx context.Context, token string) (int, error) {
	addr := common.HexToAddress(token)

	c.decMu.Lock()
	if d, ok := c.decimals[addr]; ok {
		c.decMu.Unlock()
		return d, nil
	}
	c.decMu.Unlock()

	data, err := c.erc20ABI.Pack("decimals")
	if err != nil {
		return 0, err
	}
	result, err := c.CallContract(ctx, addr, data)
	if err != nil {
		return 0, fmt.Errorf("decimals call: %w", err)
	}
	d := int(new(big.Int).SetBytes(result).Int64())
	if d < 0 || d > 36 {
		return 0, fmt.Errorf("token %s: implausible decimals %d", token, d)
	}

	c.decMu.Lock()
	c.decimals[addr] = d
	c.decMu.Unlock()
	return d, nil
}

// TokenBalance returns the wallet's ERC-20 balance in raw token units.
func (c *Client) TokenBalance(ctx context.Context, token string) (*big.Int, error) {
	data, err := c.erc20ABI.Pack("balanceOf", c.wallet)
	if err != nil {
		return nil, err
	}
	result, err := c.CallContract(ctx, common.HexToAddress(token), data)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call: %w", err)
	}
	return new(big.Int).SetBytes(result), nil
}

// CallContract performs a read-only eth_call and returns the raw result.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := map[string]interface{}{
		"to":   to.Hex(),
		"data": fmt.Sprintf("0x%x", data),
	}
	var result string
	err := c.rpc.Client().CallContext(ctx, &result, "eth_call", msg, "latest")
	if err != nil {
		return nil, err
	}
	return common.FromHex(result), nil
}
