package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roninchain/indexer/model"
)

func TestLookupLowercasesInput(t *testing.T) {
	reg := New()

	entry, ok := reg.Lookup("0xC99A6A985ED2CAC1EF41640596C5A5F9F4E19EF5")
	require.True(t, ok)
	assert.Equal(t, "WETH", entry.Name)
	assert.Equal(t, model.StandardERC20, entry.Standard)
}

func TestIsStandard(t *testing.T) {
	reg := New()

	assert.True(t, reg.IsStandard("0x32950db2a7164ae833121501c797d79e7b79d74c", model.StandardERC721))
	assert.False(t, reg.IsStandard("0x32950db2a7164ae833121501c797d79e7b79d74c", model.StandardERC20))
}

func TestContainsUnknownAddress(t *testing.T) {
	reg := New()
	assert.False(t, reg.Contains("0x0000000000000000000000000000000000dead"))
}

func TestActivationHeights(t *testing.T) {
	assert.EqualValues(t, 16_027_461, MarketplaceV2DeployBlock)
	assert.EqualValues(t, 16_171_588, ERC1155DeployBlock)
}
