package eligibility

import (
	"testing"

	"github.com/SplitFi/go-drops/service/allowlist"
	"github.com/SplitFi/go-drops/service/persist"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	listedAddr   = persist.EthereumAddress("0x9a3f9764b21adaf3c6fdf6f947e6d3340a3f8ac5")
	unlistedAddr = persist.EthereumAddress("0x57f1887a8bf19b14fc0df6fd9b2acc9af147ea85")
)

const (
	saleOpen  = int64(1000)
	saleClose = int64(2000)
)

func testDrop(t *testing.T) (persist.Drop, []common.Hash) {
	tree := allowlist.NewTree([]persist.EthereumAddress{listedAddr})
	proof, ok := tree.Proof(listedAddr)
	require.True(t, ok)

	return persist.Drop{
		ID:                 1,
		Token:              persist.TokenInfo{Supply: 10, Price: 0},
		Sold:               0,
		SaleOpen:           saleOpen,
		SaleClose:          saleClose,
		PrivateSaleOpen:    500,
		PrivateSaleMaxMint: 3,
		AllowListRoot:      tree.Root(),
	}, proof
}

func TestEvaluateOrder(t *testing.T) {
	a := assert.New(t)

	tests := []struct {
		name    string
		mutate  func(d *persist.Drop, req *Request, state *State)
		verdict Verdict
	}{
		{
			name:    "public sale is eligible",
			mutate:  func(d *persist.Drop, req *Request, state *State) {},
			verdict: Eligible,
		},
		{
			name: "paused wins over everything",
			mutate: func(d *persist.Drop, req *Request, state *State) {
				state.Paused = true
				d.Sold = d.Token.Supply
			},
			verdict: MintingPaused,
		},
		{
			name: "sold out wins over shortfall",
			mutate: func(d *persist.Drop, req *Request, state *State) {
				d.Sold = d.Token.Supply
				req.Quantity = 100
			},
			verdict: DropSoldOut,
		},
		{
			name: "not enough tokens",
			mutate: func(d *persist.Drop, req *Request, state *State) {
				d.Sold = 8
				req.Quantity = 3
			},
			verdict: NotEnoughTokensAvailable,
		},
		{
			name: "quantity overflow is a shortfall",
			mutate: func(d *persist.Drop, req *Request, state *State) {
				d.Sold = 1
				req.Quantity = ^uint64(0)
			},
			verdict: NotEnoughTokensAvailable,
		},
		{
			name: "external id count mismatch",
			mutate: func(d *persist.Drop, req *Request, state *State) {
				req.Quantity = 2
				req.ExternalIDs = []string{"only-one"}
			},
			verdict: IncorrectExternalIDs,
		},
		{
			name: "before sale without allow list",
			mutate: func(d *persist.Drop, req *Request, state *State) {
				d.AllowListRoot = common.Hash{}
				req.Now = saleOpen - 1
			},
			verdict: SaleNotStarted,
		},
		{
			name: "before private sale opens",
			mutate: func(d *persist.Drop, req *Request, state *State) {
				req.Now = 400
			},
			verdict: PrivateSaleNotStarted,
		},
		{
			name: "private phase without proof",
			mutate: func(d *persist.Drop, req *Request, state *State) {
				req.Now = saleOpen - 1
				req.Proof = nil
				req.Caller = unlistedAddr
			},
			verdict: NotWhiteListed,
		},
		{
			name: "private phase over per-address cap",
			mutate: func(d *persist.Drop, req *Request, state *State) {
				req.Now = saleOpen - 1
				req.Quantity = 2
				state.PrivateMinted = 2
			},
			verdict: MaxMintPerAddress,
		},
		{
			name: "private phase within cap is eligible",
			mutate: func(d *persist.Drop, req *Request, state *State) {
				req.Now = saleOpen - 1
				req.Quantity = 2
				state.PrivateMinted = 1
			},
			verdict: Eligible,
		},
		{
			name: "after sale close",
			mutate: func(d *persist.Drop, req *Request, state *State) {
				req.Now = saleClose + 1
			},
			verdict: SaleEnded,
		},
		{
			name: "external id already taken",
			mutate: func(d *persist.Drop, req *Request, state *State) {
				req.ExternalIDs = []string{"dup"}
				state.ExternalIDTaken = func(id string) bool { return id == "dup" }
			},
			verdict: PrintConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, proof := testDrop(t)
			req := Request{
				Caller:   listedAddr,
				Quantity: 1,
				Proof:    proof,
				Now:      saleOpen + 1,
			}
			state := State{}

			tt.mutate(&d, &req, &state)
			a.Equal(tt.verdict, Evaluate(d, req, state))
		})
	}
}

func TestEvaluateMatchesErrorFor(t *testing.T) {
	a := assert.New(t)
	d, proof := testDrop(t)

	req := Request{Caller: listedAddr, Quantity: 1, Proof: proof, Now: saleOpen + 1}
	a.NoError(ErrorFor(Evaluate(d, req, State{}), d, req, State{}))

	req.Now = saleClose + 1
	err := ErrorFor(Evaluate(d, req, State{}), d, req, State{})
	a.ErrorAs(err, &persist.ErrSaleEnded{})
}

func TestRemainingPrivateAllowance(t *testing.T) {
	a := assert.New(t)
	d, _ := testDrop(t)

	a.Equal(uint64(3), RemainingPrivateAllowance(d, 0))
	a.Equal(uint64(1), RemainingPrivateAllowance(d, 2))
	a.Equal(uint64(0), RemainingPrivateAllowance(d, 3))
	a.Equal(uint64(0), RemainingPrivateAllowance(d, 10))

	d.PrivateSaleMaxMint = 0
	a.Equal(uint64(0), RemainingPrivateAllowance(d, 0))
}
