package analysis

import "fmt"

// FallbackAnalysis returns the neutral placeholder reading served when the
// model cannot produce a valid analysis. It always passes Validate.
func FallbackAnalysis(userDream, errMsg string) *DreamAnalysis {
	return &DreamAnalysis{
		Psychology: PsychologyDetailed{
			CoreEmotion:        "Không xác định",
			EmotionIntensity:   50,
			HiddenDesire:       "Hệ thống tạm thời không thể phân tích sâu. Vui lòng thử lại.",
			InnerConflict:      fmt.Sprintf("Lỗi kỹ thuật: %s", errMsg),
			Archetype:          "N/A",
			ShadowAspect:       "Không có dữ liệu",
			TherapyType:        "Thử lại sau",
			ActionableExercise: "Hãy thử phân tích lại sau vài phút.",
		},
		Tarot: TarotDetailed{
			CardName:          "The Wheel of Fortune",
			CardNumber:        10,
			IsReversed:        false,
			OrientationReason: "Bánh xe vận mệnh luôn xoay chuyển, đây là thông điệp trung tính.",
			Suit:              "Major Arcana",
			Element:           "Spirit (Tinh thần)",
			EnergyAnalysis:    "Năng lượng đang ở trạng thái chuyển đổi.",
			VisualBridge:      "Như bánh xe không ngừng quay, đôi khi cần thời gian để hiểu rõ.",
			Prediction:        "Hãy thử lại sau, có thể có thông điệp quan trọng đang chờ bạn.",
		},
		IChing: IChingDetailed{
			HexagramName:       "Mông (蒙) - Sự Mông Muội",
			Structure:          "Thượng Cấn (Núi ☶) - Hạ Khảm (Nước ☵)",
			JudgmentSummary:    "Bình - Cần thêm thời gian để hiểu rõ",
			ImageMeaning:       "Suối chảy dưới chân núi, dần dần sẽ sáng tỏ",
			AdviceCareer:       "Khi gặp trở ngại, hãy kiên nhẫn và học hỏi thêm.",
			AdviceRelationship: "Đừng vội vàng phán xét, hãy dành thời gian thấu hiểu.",
			ActionableStep:     "Hãy thử lại sau vài phút khi hệ thống ổn định.",
		},
		Synthesis: FinalSynthesis{
			CoreMessage: "Hệ thống đang gặp trục trặc tạm thời. Hãy thử lại sau vài phút để nhận được thông điệp đầy đủ từ vũ trụ.",
			Numbers: []LuckyNumber{
				{Number: "10", Source: "Lá bài Wheel of Fortune", Meaning: "Số của sự xoay chuyển vận mệnh"},
				{Number: "04", Source: "Quẻ Mông (#04)", Meaning: "Số của sự học hỏi và khai sáng"},
				{Number: "00", Source: "Sổ Mơ: Chờ đợi", Meaning: "Số của sự bình yên, thử lại sau"},
			},
		},
		ArtPrompt: fmt.Sprintf(
			"Surrealist style painting of a mysterious dream with swirling clouds and symbolic imagery, cinematic lighting, masterpiece quality, dream elements: %s",
			truncate(userDream, 100)),
	}
}
