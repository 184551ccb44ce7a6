package pipeline

import "fmt"

// NoPriorContext stands in for retrieved context when a conversation has no
// usable history or retrieval is degraded.
const NoPriorContext = "No previous context available"

// Prompt truncation limits, in runes. Raw source material can be an entire
// PDF or video transcript, so each stage takes only the slice it needs.
const (
	outlineRawLimit  = 3000
	draftRawLimit    = 4000
	insightRawLimit  = 3000
	postDraftRawLimit = 2000

	outlinePreviewLimit = 200
	insightPreviewLimit = 150
)

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// MediumDefinition is the three-stage Medium blog pipeline:
// outline -> draft -> refined post.
func MediumDefinition() *Definition {
	return &Definition{
		Kind:     KindMedium,
		Platform: "Medium",
		ContextK: 3,
		Stages: []StageSpec{
			{
				Name:         "analyze_outline",
				OutputField:  "outline",
				NeedsContext: true,
				Prompt: func(state *RunState, contextText string) string {
					return fmt.Sprintf(`You are an expert content strategist and Medium blog writer.

Previous conversation context:
%s

User's request: %s

Raw content to analyze:
%s...

Create a detailed outline for a Medium blog post that:
1. Has an engaging, SEO-friendly title
2. Includes 5-7 main sections with subpoints
3. Considers readability and Medium's best practices
4. Addresses the user's specific requirements
5. Makes the content engaging and valuable

Provide the outline in a clear, structured format with markdown headers.`,
						contextText, state.UserRequest, truncateRunes(state.RawContent, outlineRawLimit))
				},
				Narrate: func(output string) string {
					return fmt.Sprintf("📋 **Outline Created**\n\n%s...", truncateRunes(output, outlinePreviewLimit))
				},
			},
			{
				Name:        "generate_draft",
				OutputField: "draft_blog",
				Requires:    []string{"outline"},
				Prompt: func(state *RunState, _ string) string {
					outline, _ := state.Get("outline")
					return fmt.Sprintf(`You are an expert Medium blog writer with years of experience.

Based on this outline:
%s

And this raw content:
%s...

Write a complete Medium blog post that:
1. Has an attention-grabbing introduction with a hook
2. Follows the outline structure perfectly
3. Includes relevant examples, insights, and stories
4. Uses Medium-style formatting:
   - # for main title
   - ## for section headers
   - ### for subheaders
   - **bold** for emphasis
   - *italics* for quotes or subtle emphasis
   - > for blockquotes
   - Code blocks where appropriate
5. Has smooth transitions between sections
6. Includes a strong conclusion with clear takeaways
7. Is between 1200-1800 words
8. Written in a conversational yet professional tone

Write the complete blog post in Markdown format.`,
						outline, truncateRunes(state.RawContent, draftRawLimit))
				},
				Narrate: func(string) string {
					return "✍️ **Draft Blog Generated**"
				},
			},
			{
				Name:        "refine_polish",
				OutputField: "final_blog",
				Requires:    []string{"draft_blog"},
				Prompt: func(state *RunState, _ string) string {
					draft, _ := state.Get("draft_blog")
					return fmt.Sprintf(`You are an expert editor specializing in Medium blog posts.

Review and refine this draft blog post:

%s

User's original request: %s

Improve it by:
1. Enhancing readability and flow
2. Adding compelling subheadings where needed
3. Ensuring proper markdown formatting for Medium
4. Checking grammar, punctuation, and style
5. Adding relevant emojis strategically (not too many!)
6. Strengthening the introduction and conclusion
7. Making sure it addresses the user's request perfectly
8. Adding a clear call-to-action at the end

Provide the final, polished, publication-ready version in Markdown format.
Make it shine! ✨`,
						draft, state.UserRequest)
				},
				Narrate: func(string) string {
					return "✨ **Final Blog Post Ready!**"
				},
			},
		},
	}
}

// LinkedInDefinition is the three-stage LinkedIn post pipeline:
// insights -> draft -> refined post.
func LinkedInDefinition() *Definition {
	return &Definition{
		Kind:     KindLinkedIn,
		Platform: "LinkedIn",
		ContextK: 3,
		Stages: []StageSpec{
			{
				Name:         "extract_insights",
				OutputField:  "key_insights",
				NeedsContext: true,
				Prompt: func(state *RunState, contextText string) string {
					return fmt.Sprintf(`You are a LinkedIn content strategist expert.

Previous conversation context:
%s

User's request: %s

Raw content to analyze:
%s...

Extract 3-5 key professional insights from this content that would resonate with a LinkedIn audience.
Focus on:
- Actionable takeaways
- Professional lessons
- Industry trends
- Career advice
- Business insights

List the insights clearly and concisely.`,
						contextText, state.UserRequest, truncateRunes(state.RawContent, insightRawLimit))
				},
				Narrate: func(output string) string {
					return fmt.Sprintf("💡 **Key Insights Extracted**\n\n%s...", truncateRunes(output, insightPreviewLimit))
				},
			},
			{
				Name:        "create_draft",
				OutputField: "post_draft",
				Requires:    []string{"key_insights"},
				Prompt: func(state *RunState, _ string) string {
					insights, _ := state.Get("key_insights")
					return fmt.Sprintf(`You are an expert LinkedIn content creator known for viral posts.

Key insights to work with:
%s

Original content:
%s...

User's request: %s

Create a compelling LinkedIn post that:
1. Starts with a HOOK - an attention-grabbing first line (max 150 chars)
2. Has 3-4 short paragraphs with line breaks for readability
3. Includes 1-2 key insights with context
4. Uses storytelling or personal angle when appropriate
5. Ends with a question or call-to-action to drive engagement
6. Is between 150-300 words (LinkedIn optimal length)
7. Professional yet conversational tone
8. NO hashtags yet (will be added in refinement)

Write the post in plain text format.`,
						insights, truncateRunes(state.RawContent, postDraftRawLimit), state.UserRequest)
				},
				Narrate: func(string) string {
					return "✍️ **LinkedIn Post Draft Created**"
				},
			},
			{
				Name:        "refine_post",
				OutputField: "final_post",
				Requires:    []string{"post_draft"},
				Prompt: func(state *RunState, _ string) string {
					draft, _ := state.Get("post_draft")
					return fmt.Sprintf(`You are a LinkedIn engagement specialist.

Review this LinkedIn post draft:

%s

User's request: %s

Refine it by:
1. Ensuring the hook is powerful and scroll-stopping
2. Adding strategic emoji (2-3 max, placed thoughtfully)
3. Improving readability with proper spacing
4. Adding 3-5 relevant hashtags at the end
5. Ensuring proper line breaks between paragraphs
6. Making the CTA more compelling
7. Checking it sounds authentic and conversational

Provide the final, polished LinkedIn post ready to publish.
Format with proper spacing and line breaks.`,
						draft, state.UserRequest)
				},
				Narrate: func(string) string {
					return "✨ **LinkedIn Post Ready!**"
				},
			},
		},
	}
}
