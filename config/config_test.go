package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fedups/funnelsort/config"
	"github.com/fedups/funnelsort/keycodec"
)

func TestValidateRejectsReplaceWithOutputFile(t *testing.T) {
	c := config.Default()
	c.Replace = true
	c.InputFiles = []string{"a.dat"}
	c.OutputFile = "b.dat"

	var cfgErr *config.ConfigError
	err := c.Validate()
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "--replace", cfgErr.Option)
}

func TestValidateRejectsReplaceWithoutInputFiles(t *testing.T) {
	c := config.Default()
	c.Replace = true

	err := c.Validate()
	require.Error(t, err)
}

func TestValidateRejectsFixedOutWithVariableOutput(t *testing.T) {
	c := config.Default()
	c.FixedOut = 80
	c.VariableOutput = []byte{'\n'}

	require.Error(t, c.Validate())
}

func TestValidateRejectsFixedInOutOfRange(t *testing.T) {
	c := config.Default()
	c.FixedIn = 5000

	require.Error(t, c.Validate())
}

func TestValidateRejectsDuplicateColumnNames(t *testing.T) {
	c := config.Default()
	c.Columns = []config.ColumnDef{
		{Name: "id", Type: keycodec.KindInt, Offset: 0, Length: 4},
		{Name: "id", Type: keycodec.KindString, Offset: 4, Length: 10},
	}

	require.Error(t, c.Validate())
}

func TestValidateRejectsOrderByOnUndefinedColumn(t *testing.T) {
	c := config.Default()
	c.OrderBy = []config.OrderKey{{ColumnName: "missing"}}

	require.Error(t, c.Validate())
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	c := config.Default()
	c.Columns = []config.ColumnDef{{Name: "id", Type: keycodec.KindInt, Offset: 0, Length: 4}}
	c.OrderBy = []config.OrderKey{{ColumnName: "id", Direction: keycodec.ASC}}

	require.NoError(t, c.Validate())
}

func TestValidateRejectsRowMaxExceedingMaxDepth(t *testing.T) {
	c := config.Default()
	c.Power = 0
	c.RowMax = int64(1) << 62

	err := c.Validate()
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "--rowMax", cfgErr.Option)
}

func TestValidateRejectsExplicitPowerTooSmallForRowMax(t *testing.T) {
	c := config.Default()
	c.Power = 3
	c.RowMax = 999999999999999

	err := c.Validate()
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "--power", cfgErr.Option)
}

func TestValidateRejectsPowerOutOfRange(t *testing.T) {
	c := config.Default()
	c.Power = 20

	require.Error(t, c.Validate())
}

func TestDepthUsesExplicitPowerWhenSet(t *testing.T) {
	c := config.Default()
	c.Power = 5

	d, err := c.Depth()
	require.NoError(t, err)
	require.Equal(t, 5, d)
}

func TestDepthDerivesFromRowMaxWhenPowerUnset(t *testing.T) {
	c := config.Default()
	c.Power = 0
	c.RowMax = 100

	d, err := c.Depth()
	require.NoError(t, err)
	require.GreaterOrEqual(t, int64(1)<<(uint(d)-1), int64(100))
}

func TestDeriveKeyPartsResolvesOrderBy(t *testing.T) {
	c := config.Default()
	c.Columns = []config.ColumnDef{{Name: "amount", Type: keycodec.KindInt, Offset: 4, Length: 8}}
	c.OrderBy = []config.OrderKey{{ColumnName: "amount", Direction: keycodec.DESC}}

	parts, err := config.DeriveKeyParts(&c)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	require.Equal(t, keycodec.KindInt, parts[0].Kind)
	require.Equal(t, 4, parts[0].Offset)
	require.Equal(t, keycodec.DESC, parts[0].Direction)
}

func TestDeriveCopyKeysByKeyProducesWholeRecordKey(t *testing.T) {
	c := config.Default()
	c.Copy = config.CopyByKey

	parts, negate, err := config.DeriveCopyKeys(&c)
	require.NoError(t, err)
	require.False(t, negate)
	require.Len(t, parts, 1)
	require.Equal(t, keycodec.KindString, parts[0].Kind)
	require.Equal(t, config.MaxKeyBytes, parts[0].Length)
}

func TestDeriveCopyKeysOriginalProducesNoKeyNoNegate(t *testing.T) {
	c := config.Default()
	c.Copy = config.CopyOriginal

	parts, negate, err := config.DeriveCopyKeys(&c)
	require.NoError(t, err)
	require.False(t, negate)
	require.Empty(t, parts)
}

func TestDeriveCopyKeysReverseNegatesOrdinal(t *testing.T) {
	c := config.Default()
	c.Copy = config.CopyReverse

	parts, negate, err := config.DeriveCopyKeys(&c)
	require.NoError(t, err)
	require.True(t, negate)
	require.Empty(t, parts)
}
