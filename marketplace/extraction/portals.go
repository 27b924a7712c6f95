package extraction

import "strings"

type portal struct {
	domain string
	name   string
}

// Checked in order; the first domain contained in the url wins.
var portals = []portal{
	{"india.gov.in", "India Gov Schemes Portal"},
	{"agricoop.gov.in", "Ministry of Agriculture & Farmers Welfare"},
	{"pmkisan.gov.in", "PM Kisan Samman Nidhi Portal"},
	{"pmfby.gov.in", "PM Fasal Bima Yojana"},
	{"mygov.in", "MyGov Scheme Portal"},
	{"nabard.org", "NABARD"},
	{"enam.gov.in", "e-NAM"},
	{"pmksy.gov.in", "Pradhan Mantri Krishi Sinchai Yojana"},
	{"rythubandhu.telangana.gov.in", "Telangana Rythu Bandhu"},
	{"agri.telangana.gov.in", "Telangana Agriculture Department"},
	{"ysrrythubharosa.ap.gov.in", "Andhra Pradesh YSR Rythu Bharosa"},
	{"apagrisnet.gov.in", "Andhra Pradesh Agriculture"},
	{"tn.gov.in", "Tamil Nadu Government"},
	{"tnesevai.tn.gov.in", "Tamil Nadu e-Services"},
	{"raitamitra.karnataka.gov.in", "Karnataka Raitha Mitra"},
	{"mahadbt.maharashtra.gov.in", "Maharashtra DBT"},
	{"krishijagran.com", "Krishi Jagran"},
	{"agrifarming.in", "Agri Farming"},
	{"sarkariyojana.com", "Sarkari Yojana"},
}

const (
	UnknownPortal    = "Unknown"
	GovernmentPortal = "Government Portal"
)

func DetectPortal(url string) string {
	if url == "" {
		return UnknownPortal
	}

	url = strings.ToLower(url)
	for _, p := range portals {
		if strings.Contains(url, p.domain) {
			return p.name
		}
	}
	return GovernmentPortal
}
