package config

import (
	"fmt"
)

// Validate reproduces original_source's FunnelContext construction-time
// checks: mutually exclusive option combinations and range checks,
// surfaced as ConfigError before any I/O is attempted.
func (c *Config) Validate() error {
	if c.Replace && c.OutputFile != "" {
		return &ConfigError{Option: "--replace", Err: fmt.Errorf("mutually exclusive with --outputFileName")}
	}
	if c.Replace && len(c.InputFiles) == 0 {
		return &ConfigError{Option: "--replace", Err: fmt.Errorf("requires --inputFileName; redirection or piped input is not allowed")}
	}

	if c.FixedOut > 0 && len(c.VariableOutput) > 0 {
		return &ConfigError{Option: "--fixedOut", Err: fmt.Errorf("mutually exclusive with --variableOutput")}
	}
	if c.FixedIn > 0 && c.CSV != nil {
		return &ConfigError{Option: "--fixedIn", Err: fmt.Errorf("mutually exclusive with --csv")}
	}
	if c.FixedIn != 0 && (c.FixedIn < 1 || c.FixedIn > 4096) {
		return &ConfigError{Option: "--fixedIn", Err: fmt.Errorf("must be in range 1..4096")}
	}
	if c.FixedOut != 0 && (c.FixedOut < 1 || c.FixedOut > 4096) {
		return &ConfigError{Option: "--fixedOut", Err: fmt.Errorf("must be in range 1..4096")}
	}

	if c.CSV != nil && c.HeaderInRows > 0 {
		return &ConfigError{Option: "--csv", Err: fmt.Errorf("headerIn not supported for csv files")}
	}
	if c.CSV != nil && c.HeaderOut {
		return &ConfigError{Option: "--csv", Err: fmt.Errorf("mutually exclusive with --headerOut")}
	}
	if c.CSV != nil && c.FormatOut != "" {
		return &ConfigError{Option: "--csv", Err: fmt.Errorf("mutually exclusive with --formatOut")}
	}

	if c.HexDump != nil {
		if len(c.Aggregates) > 0 {
			return &ConfigError{Option: "--hexDump", Err: fmt.Errorf("not supported with aggregate processing")}
		}
		if len(c.VariableOutput) == 0 {
			return &ConfigError{Option: "--hexDump", Err: fmt.Errorf("only valid with variableOutput")}
		}
		if c.Replace {
			return &ConfigError{Option: "--hexDump", Err: fmt.Errorf("not valid with --replace")}
		}
		if err := requireColumn(c.Columns, c.HexDump.ColumnName); err != nil {
			return &ConfigError{Option: "--hexDump", Err: err}
		}
	}

	if err := validateColumnNames(c.Columns); err != nil {
		return &ConfigError{Option: "--columnsIn", Err: err}
	}

	for _, ob := range c.OrderBy {
		if err := requireColumn(c.Columns, ob.ColumnName); err != nil {
			return &ConfigError{Option: "--orderBy", Err: err}
		}
	}

	for _, agg := range c.Aggregates {
		if agg.Name == "" {
			return &ConfigError{Option: "--count|--sum|--min|--max|--avg", Err: fmt.Errorf("aggregate must have a unique name")}
		}
		if err := requireColumn(c.Columns, agg.ColumnName); err != nil {
			return &ConfigError{Option: "--count|--sum|--min|--max|--avg", Err: err}
		}
	}

	if c.Power != 0 && (c.Power < 2 || c.Power > 16) {
		return &ConfigError{Option: "--power", Err: fmt.Errorf("must be in range 2..16")}
	}
	if c.RowMax > 0 {
		needed, err := requiredDepth(c.RowMax)
		if err != nil {
			return &ConfigError{Option: "--rowMax", Err: err}
		}
		if c.Power != 0 && c.Power < needed {
			return &ConfigError{Option: "--power", Err: fmt.Errorf(
				"power %d (leaf capacity %d) is too small for rowMax %d; needs depth >= %d",
				c.Power, int64(1)<<(uint(c.Power)-1), c.RowMax, needed)}
		}
	}

	return nil
}

func validateColumnNames(columns []ColumnDef) error {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c.Name] {
			return fmt.Errorf("columnsIn must be unique: %s", c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

func requireColumn(columns []ColumnDef, name string) error {
	for _, c := range columns {
		if c.Name == name {
			return nil
		}
	}
	return fmt.Errorf("must reference a defined column: %s", name)
}

// requiredDepth computes the tournament depth needed so the leaf
// capacity M = 1<<(depth-1) is not smaller than rowMax, the estimated
// total row count (spec.md §6 "--rowMax"). rowMax <= 0 means unbounded
// and falls back to the maximum depth. Returns an error if no depth in
// [2,16] suffices, resolving the §9 Open Question: reject at config
// time rather than let later passes discover the shortfall via the
// ordering self-check.
func requiredDepth(rowMax int64) (int, error) {
	if rowMax <= 0 {
		return 16, nil
	}
	for d := 2; d <= 16; d++ {
		if int64(1)<<(uint(d)-1) >= rowMax {
			return d, nil
		}
	}
	return 0, fmt.Errorf("rowMax %d requires tournament depth > 16", rowMax)
}

// Depth resolves the tournament depth to use: the explicit --power
// value if set, otherwise the depth implied by RowMax.
func (c *Config) Depth() (int, error) {
	if c.Power != 0 {
		return c.Power, nil
	}
	return requiredDepth(c.RowMax)
}
