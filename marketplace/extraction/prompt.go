package extraction

import (
	"fmt"
	"localfarmer/llm_gateway"
	"time"
)

const systemPrompt = "You are an expert at extracting structured information from web content. Always return valid JSON only, no additional text."

const promptTemplate = `You are an AI system designed to automatically extract Government Schemes and Subsidies related to agriculture and farmers from any webpage content.

Primary data sources include (but are not limited to):
- https://www.india.gov.in
- https://agricoop.gov.in
- https://pmkisan.gov.in
- https://pmfby.gov.in
- https://www.mygov.in/schemes/

Source Portal: %[1]v
URL: %[2]v

Your task:
1. Read the webpage text provided below.
2. Identify ONLY the government schemes related to: Agriculture, Farmers, Subsidies, Irrigation, Machinery subsidies, Loans/Credit, Crop insurance, Seeds/Fertilizers, Rural development, Financial/welfare support, farmer-centric government programs.
3. Extract each scheme in this exact JSON structure:
[
  {
    "scheme_name": "",
    "start_date": "",
    "end_date": "",
    "description": "",
    "benefits": "",
    "eligibility": "",
    "required_documents": "",
    "apply_link": "",
    "official_website": "",
    "state": "",
    "category": "",
    "last_updated": ""
  }
]

RULES
- Return ONLY valid JSON. No text, no explanation.
- Do NOT add, guess, or invent missing information.
- Leave missing fields as empty strings.
- Combine multiline content into clean single-paragraph text.
- Dates must follow YYYY-MM-DD. If only year is known, use YYYY-01-01.
- If a scheme has no end date → set "end_date": "".
- If state is not mentioned → set "state": "All India".
- If multiple schemes exist → return an array; if none exist → return [].
- Ignore ads, navigation menus, unrelated articles, or political content.
- Extract only legitimate Government schemes and official application links.
- Detect expired schemes based on dates if present.
- Output MUST be valid JSON array only.

State hints:
- Central schemes: "All India"
- Telangana: "Telangana"
- Andhra Pradesh: "Andhra Pradesh"
- Tamil Nadu: "Tamil Nadu"
- Karnataka: "Karnataka"
- Maharashtra: "Maharashtra"

Date intelligence:
- Ongoing/live with no end date: end_date = ""
- Enrollment period: capture both start_date and end_date
- Current date context: %[3]v

Now extract ALL Government Schemes from this content:

%[4]v

Return ONLY the JSON array, nothing else.`

func BuildPrompt(portal, url, content string, now time.Time) llm_gateway.Prompt {
	if url == "" {
		url = "Content provided directly"
	}
	return llm_gateway.Prompt{
		System: systemPrompt,
		User:   fmt.Sprintf(promptTemplate, portal, url, now.Format("2006-01-02"), content),
	}
}
