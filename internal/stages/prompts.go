package stages

// LLM prompt templates: data only, no logic.

const editorSystem = "You are a professional editor converting video content into book format."

const glossarySystem = "You are a professional editor creating a glossary."

const readingSystem = "You are a knowledge expert creating recommendations for further reading."

const takeawaySystem = "You are an assistant specializing in extracting key information."

const classifySystem = "You are an assistant specializing in content classification."

// outlinePrompt plans the book.
// Args: title, channel, duration seconds, head excerpt, middle excerpt, tail excerpt.
const outlinePrompt = `You are converting a YouTube video transcript into a structured book.

VIDEO INFORMATION:
Title: %s
Channel: %s
Duration: %d seconds

Based on the transcript excerpts below, produce:
1. A concise summary of the content (3-5 paragraphs)
2. An outline with 5-10 chapter titles that logically organize the content
3. Key themes and topics covered
4. Target audience and knowledge level

TRANSCRIPT EXCERPT (beginning):
%s

TRANSCRIPT EXCERPT (middle):
%s

TRANSCRIPT EXCERPT (end):
%s

Respond with valid JSON only:
{"summary": "...", "chapter_outline": ["Chapter 1: ...", "..."], "key_themes": ["..."], "target_audience": "...", "difficulty_level": "Beginner|Intermediate|Advanced|Expert"}`

// chapterPrompt writes chapter sections for one transcript chunk.
// Args: title, JSON list of chapter titles, chunk number, chunk total, chunk text.
const chapterPrompt = `You are converting a video transcript into a structured book format.

VIDEO INFORMATION:
Title: %s

You need to create the following chapters based on this transcript chunk:
%s

This is chunk %d of %d from the transcript.

TRANSCRIPT CHUNK:
%s

For each chapter in the list, if the transcript chunk contains relevant content:
1. Write a clear, concise section of text
2. Include 3-5 key points that summarize the most important information
3. Add any relevant examples or case studies mentioned
4. Note any important quotes or statistics

Respond with valid JSON only, chapters as keys in the order above:
{
  "Chapter Title": {
    "content": "Rewritten content in clear paragraphs...",
    "key_points": ["Key point 1", "Key point 2"],
    "examples": ["Example 1"],
    "quotes": ["Quote 1"]
  }
}

Use the chapter titles exactly as given. Only include chapters that can be written from this chunk; skip chapters with no relevant content here.`

// glossaryPrompt picks terms worth defining.
// Args: title, summary, JSON list of key themes.
const glossaryPrompt = `You are creating a glossary for a book based on a video transcript.

VIDEO INFORMATION:
Title: %s
Summary: %s
Key Themes: %s

Based on the summary and key themes, identify 5-15 important terms, concepts, or jargon that would benefit from definition in a glossary.
For each term, give a clear, concise definition as it relates to the content of this video.

Respond with valid JSON only, terms as keys and definitions as values:
{"Term 1": "Definition 1", "Term 2": "Definition 2"}`

// readingPrompt recommends follow-up material.
// Args: title, channel, summary, JSON list of key themes.
const readingPrompt = `You are creating a 'Further Reading' section for a book based on a video.

VIDEO INFORMATION:
Title: %s
Channel: %s
Summary: %s
Key Themes: %s

Suggest 5-10 books, articles, courses, or other resources valuable for someone interested in this topic.
For each, give a title, author or source, and a brief description of why it is relevant.

Respond with valid JSON only:
[{"title": "Resource Title", "author": "Author/Source", "description": "Brief description of relevance"}]`

// takeawayPrompt extracts the main lessons.
// Args: summary, transcript head, transcript tail.
const takeawayPrompt = `Based on the video summary and transcript, identify 5-7 key takeaways that represent the most important points or lessons from this content.

SUMMARY:
%s

TRANSCRIPT EXCERPTS:
%s
...
%s

Respond with valid JSON only:
{"key_takeaways": ["Takeaway 1", "Takeaway 2"]}`

// classifyPrompt categorizes the video.
// Args: title, channel, description, transcript head.
const classifyPrompt = `Analyze this video and classify it.

VIDEO TITLE: %s
CHANNEL NAME: %s
VIDEO DESCRIPTION: %s

TRANSCRIPT EXCERPT:
%s

Respond with valid JSON only:
{"primary_category": "string", "categories": ["string"], "tags": ["string"], "estimated_reading_time": 10}

estimated_reading_time is in minutes for the written book.`
