package chain

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nftstudio/nft-minter/internal/core/domain"
)

const contractAddr = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func TestPackMintDefaultABI(t *testing.T) {
	parsed, err := ParseABI("")
	require.NoError(t, err)
	c, err := NewMintContract(contractAddr, parsed, "")
	require.NoError(t, err)

	to := common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	data, err := c.PackMint(to, "https://gateway.pinata.cloud/ipfs/abc")
	require.NoError(t, err)

	method := parsed.Methods[DefaultMintMethod]
	assert.Equal(t, method.ID, data[:4])

	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, to, args[0])
	assert.Equal(t, "https://gateway.pinata.cloud/ipfs/abc", args[1])
	assert.Equal(t, common.HexToAddress(contractAddr), c.Contract())
}

func TestNewMintContractRejectsBadInput(t *testing.T) {
	parsed, err := ParseABI("")
	require.NoError(t, err)

	_, err = NewMintContract("0x1234", parsed, "")
	assert.Error(t, err)

	_, err = NewMintContract(contractAddr, parsed, "burn")
	assert.Error(t, err)

	_, err = NewMintContract(contractAddr, parsed, "tokenURI")
	assert.Error(t, err, "tokenURI(uint256) is not a mint signature")
}

func TestLoadABIFromArtifact(t *testing.T) {
	dir := t.TempDir()
	artifact := `{"contractName":"MyNFT","abi":[{"name":"safeMint","type":"function","inputs":[{"name":"to","type":"address"},{"name":"uri","type":"string"}],"outputs":[],"stateMutability":"nonpayable"}]}`
	path := filepath.Join(dir, "MyNFT.json")
	require.NoError(t, os.WriteFile(path, []byte(artifact), 0600))

	parsed, err := LoadABI(path)
	require.NoError(t, err)
	c, err := NewMintContract(contractAddr, parsed, "safeMint")
	require.NoError(t, err)
	assert.Equal(t, "safeMint", c.Method())

	_, err = LoadABI(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

type fakeReceipts struct {
	calls    atomic.Int32
	readyAt  int32
	receipt  *types.Receipt
	failWith error
}

func (f *fakeReceipts) TransactionReceipt(ctx context.Context, _ common.Hash) (*types.Receipt, error) {
	n := f.calls.Add(1)
	if f.failWith != nil {
		return nil, f.failWith
	}
	if f.readyAt > 0 && n >= f.readyAt {
		return f.receipt, nil
	}
	return nil, ethereum.NotFound
}

func TestReceiptWaiterPollsUntilMined(t *testing.T) {
	want := &types.Receipt{Status: types.ReceiptStatusSuccessful}
	src := &fakeReceipts{readyAt: 3, receipt: want}
	w := NewReceiptWaiter(src, time.Millisecond, time.Second)

	got, err := w.Wait(context.Background(), common.Hash{1})
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.EqualValues(t, 3, src.calls.Load())
}

func TestReceiptWaiterTimeout(t *testing.T) {
	w := NewReceiptWaiter(&fakeReceipts{}, time.Millisecond, 20*time.Millisecond)

	_, err := w.Wait(context.Background(), common.Hash{1})
	assert.ErrorIs(t, err, domain.ErrConfirmationTimeout)
}

func TestReceiptWaiterCallerCancel(t *testing.T) {
	w := NewReceiptWaiter(&fakeReceipts{}, time.Millisecond, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Wait(ctx, common.Hash{1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReceiptWaiterSourceError(t *testing.T) {
	boom := errors.New("rpc down")
	w := NewReceiptWaiter(&fakeReceipts{failWith: boom}, time.Millisecond, time.Second)

	_, err := w.Wait(context.Background(), common.Hash{1})
	assert.ErrorIs(t, err, boom)
}

func TestTokenIDFromReceipt(t *testing.T) {
	contract := common.HexToAddress(contractAddr)
	to := common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	receipt := &types.Receipt{Logs: []*types.Log{
		{Address: common.HexToAddress("0x01"), Topics: []common.Hash{transferEventSig, {}, {}, common.BigToHash(big.NewInt(9))}},
		{Address: contract, Topics: []common.Hash{transferEventSig, {}, common.BytesToHash(to.Bytes()), common.BigToHash(big.NewInt(42))}},
	}}

	id, ok := TokenIDFromReceipt(receipt, contract)
	require.True(t, ok)
	assert.Equal(t, uint64(42), id)

	parsed, err := ParseABI("")
	require.NoError(t, err)
	c, err := NewMintContract(contractAddr, parsed, "")
	require.NoError(t, err)
	id, ok = c.TokenID(receipt)
	require.True(t, ok)
	assert.Equal(t, uint64(42), id)

	_, ok = TokenIDFromReceipt(&types.Receipt{}, contract)
	assert.False(t, ok)
}

func TestExplorerURLs(t *testing.T) {
	assert.Equal(t, "https://sepolia.etherscan.io", ExplorerBase(11155111, ""))
	assert.Equal(t, "https://amoy.polygonscan.com", ExplorerBase(80002, ""))
	assert.Equal(t, "https://sepolia.etherscan.io", ExplorerBase(424242, ""))
	assert.Equal(t, "https://etherscan.io", ExplorerBase(1, ""))
	assert.Equal(t, "https://explorer.local", ExplorerBase(1, "https://explorer.local/"))
}

func TestNetworkName(t *testing.T) {
	assert.Equal(t, "Sepolia Testnet", NetworkName(DefaultChainID))
	assert.Equal(t, "chain 42", NetworkName(42))
}
