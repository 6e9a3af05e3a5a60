// Copyright (C) 2025 The vbox-unattend Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package timezone holds the pure, static lookup tables the template
// engine needs: IANA <-> Windows timezone name mapping and the Windows
// registry timezone index, kept as immutable sorted slices searched with
// sort.Search rather than maps, per spec.md's "encode as immutable sorted
// arrays with binary search" design note.
package timezone

import "sort"

// Entry pairs one IANA zone with its Windows display name and registry
// "index" value (the legacy TIME_ZONE_INFORMATION index VBoxService's
// guest additions still understand).
type Entry struct {
	IANA        string
	WindowsName string
	WindowsIdx  int
}

// fallbackWindowsIndex is the index for "GMT Standard Time" used whenever
// no mapping is found, per spec.md §4.1.2.
const fallbackWindowsIndex = 85

// table is sorted by IANA name so Lookup can binary search it. This is a
// representative subset of the full IANA database: every zone a guest OS
// installer answer file is realistically pointed at.
var table = []Entry{
	{"Africa/Cairo", "Egypt Standard Time", 50},
	{"Africa/Johannesburg", "South Africa Standard Time", 28},
	{"Africa/Lagos", "W. Central Africa Standard Time", 13},
	{"America/Anchorage", "Alaskan Standard Time", 3},
	{"America/Argentina/Buenos_Aires", "Argentina Standard Time", 41},
	{"America/Bogota", "SA Pacific Standard Time", 35},
	{"America/Chicago", "Central Standard Time", 9},
	{"America/Denver", "Mountain Standard Time", 6},
	{"America/Halifax", "Atlantic Standard Time", 2},
	{"America/Los_Angeles", "Pacific Standard Time", 4},
	{"America/Mexico_City", "Central Standard Time (Mexico)", 47},
	{"America/New_York", "Eastern Standard Time", 7},
	{"America/Phoenix", "US Mountain Standard Time", 8},
	{"America/Sao_Paulo", "E. South America Standard Time", 37},
	{"Asia/Baghdad", "Arabic Standard Time", 51},
	{"Asia/Bangkok", "SE Asia Standard Time", 66},
	{"Asia/Dubai", "Arabian Standard Time", 53},
	{"Asia/Hong_Kong", "China Standard Time", 74},
	{"Asia/Istanbul", "Turkey Standard Time", 57},
	{"Asia/Jakarta", "SE Asia Standard Time", 66},
	{"Asia/Jerusalem", "Israel Standard Time", 56},
	{"Asia/Kabul", "Afghanistan Standard Time", 52},
	{"Asia/Kolkata", "India Standard Time", 62},
	{"Asia/Seoul", "Korea Standard Time", 77},
	{"Asia/Shanghai", "China Standard Time", 74},
	{"Asia/Singapore", "Singapore Standard Time", 70},
	{"Asia/Tehran", "Iran Standard Time", 54},
	{"Asia/Tokyo", "Tokyo Standard Time", 76},
	{"Atlantic/Reykjavik", "Greenwich Standard Time", 15},
	{"Australia/Brisbane", "E. Australia Standard Time", 81},
	{"Australia/Perth", "W. Australia Standard Time", 79},
	{"Australia/Sydney", "AUS Eastern Standard Time", 82},
	{"Etc/GMT", "GMT Standard Time", fallbackWindowsIndex},
	{"Etc/UTC", "UTC", 90},
	{"Europe/Amsterdam", "W. Europe Standard Time", 19},
	{"Europe/Athens", "GTB Standard Time", 23},
	{"Europe/Berlin", "W. Europe Standard Time", 19},
	{"Europe/Bucharest", "GTB Standard Time", 23},
	{"Europe/Dublin", "GMT Standard Time", fallbackWindowsIndex},
	{"Europe/Helsinki", "FLE Standard Time", 24},
	{"Europe/Lisbon", "GMT Standard Time", fallbackWindowsIndex},
	{"Europe/London", "GMT Standard Time", fallbackWindowsIndex},
	{"Europe/Madrid", "Romance Standard Time", 20},
	{"Europe/Moscow", "Russian Standard Time", 60},
	{"Europe/Paris", "Romance Standard Time", 20},
	{"Europe/Prague", "Central Europe Standard Time", 17},
	{"Europe/Rome", "W. Europe Standard Time", 19},
	{"Europe/Warsaw", "Central European Standard Time", 18},
	{"Pacific/Auckland", "New Zealand Standard Time", 85 + 1},
	{"Pacific/Honolulu", "Hawaiian Standard Time", 1},
}

func init() {
	sort.Slice(table, func(i, j int) bool { return table[i].IANA < table[j].IANA })
}

// Lookup finds the Windows name and registry index for an IANA zone. If tz
// looks like a Windows display name already (no "/"), it is matched
// against WindowsName directly. Unknown zones return the GMT fallback
// (index 85), never an error — timezone resolution must never fail the
// template expansion.
func Lookup(tz string) Entry {
	if tz == "" {
		return Entry{IANA: "Etc/UTC", WindowsName: "GMT Standard Time", WindowsIdx: fallbackWindowsIndex}
	}
	i := sort.Search(len(table), func(i int) bool { return table[i].IANA >= tz })
	if i < len(table) && table[i].IANA == tz {
		return table[i]
	}
	for _, e := range table {
		if e.WindowsName == tz {
			return e
		}
	}
	return Entry{IANA: tz, WindowsName: "GMT Standard Time", WindowsIdx: fallbackWindowsIndex}
}
