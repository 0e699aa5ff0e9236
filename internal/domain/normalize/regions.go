package normalize

// Region codes understood by the default table.
const (
	RegionEMEA     = "emea"
	RegionAmericas = "americas"
	RegionAPAC     = "apac"
	RegionMEA      = "mea"
)

// defaultRegions maps folded country and city names to region codes. Region
// codes map to themselves so a location may name its region directly.
func defaultRegions() map[string]string {
	return map[string]string{
		RegionEMEA:     RegionEMEA,
		RegionAmericas: RegionAmericas,
		RegionAPAC:     RegionAPAC,
		RegionMEA:      RegionMEA,

		"france":         RegionEMEA,
		"italy":          RegionEMEA,
		"switzerland":    RegionEMEA,
		"united kingdom": RegionEMEA,
		"uk":             RegionEMEA,
		"germany":        RegionEMEA,
		"spain":          RegionEMEA,
		"monaco":         RegionEMEA,
		"netherlands":    RegionEMEA,
		"paris":          RegionEMEA,
		"milan":          RegionEMEA,
		"florence":       RegionEMEA,
		"geneva":         RegionEMEA,
		"zürich":         RegionEMEA,
		"london":         RegionEMEA,
		"munich":         RegionEMEA,
		"madrid":         RegionEMEA,

		"united arab emirates": RegionMEA,
		"uae":                  RegionMEA,
		"saudi arabia":         RegionMEA,
		"qatar":                RegionMEA,
		"dubai":                RegionMEA,
		"doha":                 RegionMEA,
		"riyadh":               RegionMEA,

		"united states": RegionAmericas,
		"usa":           RegionAmericas,
		"canada":        RegionAmericas,
		"brazil":        RegionAmericas,
		"mexico":        RegionAmericas,
		"new york":      RegionAmericas,
		"los angeles":   RegionAmericas,
		"miami":         RegionAmericas,
		"toronto":       RegionAmericas,
		"são paulo":     RegionAmericas,

		"china":         RegionAPAC,
		"japan":         RegionAPAC,
		"south korea":   RegionAPAC,
		"singapore":     RegionAPAC,
		"hong kong":     RegionAPAC,
		"australia":     RegionAPAC,
		"shanghai":      RegionAPAC,
		"beijing":       RegionAPAC,
		"tokyo":         RegionAPAC,
		"seoul":         RegionAPAC,
		"sydney":        RegionAPAC,
		"hong kong sar": RegionAPAC,
		"kuala lumpur":  RegionAPAC,
		"malaysia":      RegionAPAC,
	}
}
