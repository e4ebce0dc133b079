package models

// Database schema overview:
// 1. users, refresh_tokens, permanent_tokens - cookie based authentication
// 2. questions - the question bank, seeded from services/seed/questions.yaml
// 3. interview_sessions - one practice attempt; answered count and overall score are recomputed
//    from interview_answers and answer_analyses after every submission
// 4. interview_answers - one row per submission, never updated
// 5. answer_analyses - scoring output, unique per answer

// All returns every model that the GORM repository migrates
func All() []interface{} {
	return []interface{}{
		&User{},
		&RefreshToken{},
		&PermanentToken{},
		&Question{},
		&Session{},
		&Answer{},
		&Analysis{},
	}
}
