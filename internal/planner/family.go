package planner

import (
	"strings"
)

// RouteFamily normalizes a route or suburb name into its macro-route family.
// Pure and total: empty input yields the empty family, which the packer treats
// as matching any unit.
//
// Classification order: alias corrections, then the first matching prefix
// rule, then a token fallback keeping the leading token (plus a second token
// when it is a recognized directional or geographic qualifier).
func RouteFamily(name string) string {
	s := normalizeRouteName(name)
	if s == "" {
		return ""
	}

	for _, r := range prefixRules {
		if strings.HasPrefix(s, r.prefix) {
			return r.family
		}
	}

	return fallbackFamily(s)
}

// normalizeRouteName uppercases, collapses separators and whitespace, and
// applies spelling/alias corrections.
func normalizeRouteName(name string) string {
	s := strings.ToUpper(strings.TrimSpace(name))
	if s == "" {
		return ""
	}
	repl := strings.NewReplacer("-", " ", "_", " ", "/", " ", ",", " ", ".", " ")
	s = repl.Replace(s)
	s = strings.Join(strings.Fields(s), " ")

	for _, a := range aliases {
		if strings.Contains(s, a.from) {
			s = strings.ReplaceAll(s, a.from, a.to)
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// aliases fix the spellings that show up in route masters and SAP suburb
// fields. Applied before prefix matching, longest-first where order matters.
var aliases = []struct{ from, to string }{
	{"EASTRAND", "EAST RAND"},
	{"WESTRAND", "WEST RAND"},
	{"JHBSOUTH", "JHB SOUTH"},
	{"JHBNORTH", "JHB NORTH"},
	{"JOHANNESBURG", "JHB"},
	{"JOBURG", "JHB"},
	{"PTA", "PRETORIA"},
	{"TSHWANE", "PRETORIA"},
	{"CPT", "CAPE TOWN"},
	{"KAAPSTAD", "CAPE TOWN"},
	{"DBN", "DURBAN"},
	{"VDBP", "VANDERBIJLPARK"},
	{"MBOMBELA", "NELSPRUIT"},
}

// prefixRules map known macro-zones, first match wins. More specific prefixes
// must precede their generic parent ("JHB SOUTH" before "JHB").
var prefixRules = []struct{ prefix, family string }{
	{"JHB SOUTH", "JHB SOUTH"},
	{"JHB NORTH", "JHB NORTH"},
	{"JHB CENTRAL", "JHB CENTRAL"},
	{"JHB CBD", "JHB CENTRAL"},
	{"JHB", "JHB CENTRAL"},
	{"SOWETO", "JHB SOUTH"},
	{"SOUTHGATE", "JHB SOUTH"},
	{"RANDBURG", "JHB NORTH"},
	{"FOURWAYS", "JHB NORTH"},
	{"SANDTON", "SANDTON"},
	{"MIDRAND", "MIDRAND"},
	{"EAST RAND", "EAST RAND"},
	{"BOKSBURG", "EAST RAND"},
	{"BENONI", "EAST RAND"},
	{"SPRINGS", "EAST RAND"},
	{"GERMISTON", "EAST RAND"},
	{"KEMPTON PARK", "EAST RAND"},
	{"EDENVALE", "EAST RAND"},
	{"ALBERTON", "EAST RAND"},
	{"WEST RAND", "WEST RAND"},
	{"KRUGERSDORP", "WEST RAND"},
	{"ROODEPOORT", "WEST RAND"},
	{"RANDFONTEIN", "WEST RAND"},
	{"PRETORIA NORTH", "PRETORIA NORTH"},
	{"PRETORIA", "PRETORIA"},
	{"CENTURION", "CENTURION"},
	{"VAAL", "VAAL"},
	{"VEREENIGING", "VAAL"},
	{"VANDERBIJLPARK", "VAAL"},
	{"SASOLBURG", "VAAL"},
	{"DURBAN", "DURBAN"},
	{"CAPE TOWN", "CAPE TOWN"},
	{"BLOEMFONTEIN", "BLOEMFONTEIN"},
	{"POLOKWANE", "POLOKWANE"},
	{"NELSPRUIT", "LOWVELD"},
	{"WITBANK", "LOWVELD"},
	{"EMALAHLENI", "LOWVELD"},
	{"RUSTENBURG", "RUSTENBURG"},
}

// directional and geographic qualifiers worth keeping as a second token in
// the fallback path.
var familyQualifiers = map[string]bool{
	"NORTH":   true,
	"SOUTH":   true,
	"EAST":    true,
	"WEST":    true,
	"CENTRAL": true,
	"RAND":    true,
	"CBD":     true,
	"COAST":   true,
}

// fallbackFamily strips punctuation/digits and keeps the first one or two
// tokens of an unrecognized route name.
func fallbackFamily(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r == ' ':
			b.WriteRune(r)
		}
	}
	tokens := strings.Fields(b.String())
	if len(tokens) == 0 {
		return ""
	}
	if len(tokens) >= 2 && familyQualifiers[tokens[1]] {
		return tokens[0] + " " + tokens[1]
	}
	return tokens[0]
}
