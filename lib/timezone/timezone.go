package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("America/Mexico_City")
	if err != nil {
		panic(err)
	}
}

// force the portal timezone regardless of where the server runs, bill
// months are computed from <time.Time>.Year()/Month() and must not
// shift across a date line
func Now() time.Time {
	return time.Now().In(Location)
}
