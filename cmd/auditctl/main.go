// Command auditctl runs audit analytics against local ledger files.
//
//	auditctl analyze --transactions ledger.csv --balances balances.csv
//	auditctl sample --transactions ledger.db --method MONETARY_UNIT --size 40 --seed 7
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
