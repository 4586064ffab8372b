package aiservice

/* =================================================================================
							PROMPT TEMPLATES
	Each template asks for a bare JSON object; ExtractJSON tolerates the prose and
	markdown fences the models add anyway.
=================================================================================*/

// dietPromptTemplate takes the optional user note line.
const dietPromptTemplate = `You are a nutrition expert AI. Analyze this input (Image and/or Text).
%s
If image is present, identify food items and estimate calories.
If only text is present, estimate calories based on the description.

Return ONLY a valid JSON object:
{
    "items": [
        {"name": "Food Name", "kcal": 100, "carbs": 10, "protein": 5, "fat": 2}
    ],
    "total_kcal": 100,
    "advice": "Short nutritional advice for this meal."
}`

// exercisePromptTemplate takes the optional user note line.
const exercisePromptTemplate = `You are a professional fitness coach using Vision AI. Analyze this input.
%s
1. Identify the exercise type.
2. Analyze the form/posture (if visual provided).
3. Recommend a workout plan.

Return ONLY a valid JSON object:
{
    "exercise_type": "Squat",
    "feedback": "Your knees are caving inward slightly.",
    "recommendation": "Perform 3 sets of 12 reps."
}`

// planEvaluationPromptTemplate takes the plan, the diet digest and the exercise digest.
const planEvaluationPromptTemplate = `You are a professional health consultant AI. Evaluate the user's plan based on their history.

User's New Plan:
%s

Diet History (Last 5 records):
%s

Exercise History (Last 5 records):
%s

Return ONLY a valid JSON object in this format:
{
    "verdict": "Great / Good / Risky / Bad",
    "pros": "Advantages of this plan",
    "cons": "Potential issues or risks",
    "advice": "General advice or improvement tips"
}`

// dailyRecommendationPromptTemplate takes the diet digest and the exercise digest.
const dailyRecommendationPromptTemplate = `You are a professional health coach. Based on the user's history, suggest ONE meal and ONE workout for today.
Keep it very concise.

Diet History (Last records):
%s

Exercise History (Last records):
%s

Return ONLY a valid JSON object in this format:
{
    "meal": "Name of today's recommended meal",
    "workout": "Name of today's recommended workout"
}`
