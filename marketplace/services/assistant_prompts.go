package services

import "fmt"

var languageNames = map[string]string{
	"en": "English",
	"te": "Telugu",
	"hi": "Hindi",
	"ta": "Tamil",
	"kn": "Kannada",
}

const chatSystemPrompt = `%vYou are CTF.ai Agricultural Assistant, an expert farming advisor for Indian farmers. Your role is to provide:

- Practical crop cultivation guidance
- Pest and disease management solutions
- Fertilizer and soil health recommendations
- Market intelligence and pricing trends
- Weather and climate advice
- Best farming practices and techniques
- Seasonal crop suggestions
%v

Guidelines:
- Keep responses clear, concise, and actionable (max 250 words)
- Use bullet points when listing multiple items
- Include specific numbers, measurements, or timeframes when relevant
- Be friendly, supportive, and farmer-focused
- If asked about non-agricultural topics, politely redirect to farming
`

const cropDetailsSystemPrompt = "You are an expert agricultural advisor for Indian farmers. Provide detailed, accurate, and practical farming information."

const cropDetailsPrompt = `Provide comprehensive cultivation information for "%[1]s" crop for Indian farmers. Structure the information EXACTLY with the following emoji headings and sections:

🧠 Crop Overview
- Brief description, botanical name and family
- Economic importance and main uses
- Major growing regions in India

🧭 Growth Stages & Duration
- Complete lifecycle from seed to harvest
- Time duration for each growth stage
- Key developmental milestones
- Total crop duration

🌱 Soil & Climate Requirements
- Ideal soil type (pH, texture, composition)
- Temperature requirements (min, max, optimal)
- Rainfall/humidity needs
- Sunlight requirements
- Altitude preferences

🧪 Fertilisers & Nutrient Management
- NPK requirements at different stages
- Organic vs chemical fertilizer recommendations
- Application schedule and dosage
- Micronutrient needs
- Soil amendments

🐛 Pest & Disease Management
- Common pests affecting %[1]s
- Major diseases and their symptoms
- Integrated pest management strategies
- Organic and chemical control methods
- Preventive measures

💧 Irrigation & Water Management
- Water requirements (liters/acre or mm)
- Irrigation schedule and frequency
- Critical watering stages
- Irrigation methods (drip, sprinkler, flood)
- Water conservation tips

🚜 Cultivation Steps
- Land preparation
- Seed selection and treatment
- Sowing/planting method and spacing
- Transplanting (if applicable)
- Intercultural operations
- Weeding schedule

📦 Post-Harvest Handling & Storage
- Harvesting indicators and method
- Post-harvest processing
- Storage conditions and duration
- Packaging requirements
- Quality grading

📈 Market Intelligence
- Current market demand trends
- Average market price range in India (₹/quintal or ₹/kg)
- Peak selling season
- Major mandis/markets
- Export potential
- Value-added products

🌾 Popular Varieties
- List 5-7 popular varieties/cultivars of %[1]s
- Each variety's special characteristics
- Yield potential
- Disease resistance traits

☀️ Climate & Weather Forecast
- Best planting season (Kharif/Rabi/Zaid)
- Weather-related risks
- Climate change impact
- Adaptation strategies

🔍 AI Suitability & Recommendation Summary
- Overall profitability assessment
- Risk level (Low/Medium/High)
- Suitable for small/medium/large farms
- Key success factors
- Common mistakes to avoid
- Final recommendation for farmers

Format with emoji headings EXACTLY as shown above. Use bullet points (•) for details under each section. Keep language simple and practical for farmers. Include specific numbers and data where possible.`

// chatPrompt builds the system prompt of the farming assistant. Replies are
// requested in language unless it is English.
func chatPrompt(language, crop string) string {
	languageInstruction := ""
	if language != "" && language != "en" {
		name, ok := languageNames[language]
		if !ok {
			name = "English"
		}
		languageInstruction = fmt.Sprintf("Please respond in %v language. ", name)
	}

	cropInstruction := ""
	if crop != "" {
		cropInstruction = fmt.Sprintf("\n\nContext: The user is asking about %v crop. Provide specific and relevant information related to this crop.", crop)
	}

	return fmt.Sprintf(chatSystemPrompt, languageInstruction, cropInstruction)
}

func cropDetailsQuestion(crop string) string {
	return fmt.Sprintf(cropDetailsPrompt, crop)
}
