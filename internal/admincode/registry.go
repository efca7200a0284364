// Package admincode is the static {province → district → sub-district}
// administrative code table used by the crawl planners. The appraisal
// source requires 10-digit sub-region ("법정동") codes; the transactions
// source requires the 5-digit district ("LAWD") prefix.
package admincode

import "strings"

type Entry struct {
	Province    string
	District    string
	SubDistrict string
	// SubRegionCode10 is the national legal-dong identifier (법정동코드).
	SubRegionCode10 string
}

// DistrictCode5 is the first 5 digits of SubRegionCode10.
func (e Entry) DistrictCode5() string {
	if len(e.SubRegionCode10) < 5 {
		return e.SubRegionCode10
	}
	return e.SubRegionCode10[:5]
}

// table is a representative slice of the nationwide legal-dong code
// dataset, generated rather than hand-transcribed in full (spec §9 design
// note). It covers a few sub-districts of Seoul's 강남구/서초구/송파구 and
// Gyeonggi's 성남시분당구; operators extend it with the authoritative
// national dataset in production.
var table = []Entry{
	{"서울특별시", "강남구", "역삼동", "1168010100"},
	{"서울특별시", "강남구", "개포동", "1168010300"},
	{"서울특별시", "강남구", "대치동", "1168010600"},
	{"서울특별시", "강남구", "도곡동", "1168011000"},
	{"서울특별시", "서초구", "반포동", "1165010300"},
	{"서울특별시", "서초구", "잠원동", "1165010800"},
	{"서울특별시", "송파구", "잠실동", "1171010100"},
	{"서울특별시", "송파구", "신천동", "1171010200"},
	{"경기도", "성남시분당구", "정자동", "4113510700"},
	{"경기도", "성남시분당구", "서현동", "4113510600"},
}

// byKey indexes table entries by normalized (province, district, subDistrict).
var byKey = func() map[string]Entry {
	m := make(map[string]Entry, len(table))
	for _, e := range table {
		m[key(e.Province, e.District, e.SubDistrict)] = e
	}
	return m
}()

func key(province, district, subDistrict string) string {
	return strings.TrimSpace(province) + "|" + strings.TrimSpace(district) + "|" + strings.TrimSpace(subDistrict)
}

// Lookup resolves one (province, district, sub-district) to its admin code entry.
func Lookup(province, district, subDistrict string) (Entry, bool) {
	e, ok := byKey[key(province, district, subDistrict)]
	return e, ok
}

// SubRegionCodes returns every sub-district entry under a (province, district),
// used by the listings crawl planners' province → district → sub-district traversal.
func SubRegionCodes(province, district string) []Entry {
	var out []Entry
	for _, e := range table {
		if e.Province == province && e.District == district {
			out = append(out, e)
		}
	}
	return out
}

// DistrictCode5 resolves the 5-digit transaction district code for a
// (province, district), taken from the first matching sub-district entry.
func DistrictCode5(province, district string) (string, bool) {
	for _, e := range table {
		if e.Province == province && e.District == district {
			return e.DistrictCode5(), true
		}
	}
	return "", false
}
