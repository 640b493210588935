package waterbill

import "fmt"

// month names as the portals author them, index+1 = numeric month
var monthNames = [12]string{
	"Enero",
	"Febrero",
	"Marzo",
	"Abril",
	"Mayo",
	"Junio",
	"Julio",
	"Agosto",
	"Septiembre",
	"Octubre",
	"Noviembre",
	"Diciembre",
}

// MonthNumber maps a Spanish month name to its zero-padded two-digit
// number. The lookup is case-sensitive against the portal's authoring
// locale; an unknown name is an extraction failure, never a default.
func MonthNumber(name string) (string, error) {
	for i, m := range monthNames {
		if m == name {
			return fmt.Sprintf("%02d", i+1), nil
		}
	}
	return "", fmt.Errorf("unknown month name %q", name)
}
