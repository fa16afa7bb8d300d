package core_test

import (
	"fmt"

	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
)

func ExampleLookup() {
	spec, _ := core.Lookup(core.FieldDaysRemaining)
	fmt.Println(spec.Name, spec.Unit, spec.Kind)
	// Output: Dní do konce platnosti days integer
}
