package responder

import (
	"fmt"
	"time"
)

type rule struct {
	name     string
	keywords []string
	replies  []string
	dynamic  func(now time.Time) string
}

// rules are evaluated in order; the first category with a matching keyword wins.
var rules = []rule{
	{
		name:     "greeting",
		keywords: []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"},
		replies: []string{
			"Hello! How can I help you today?",
			"Hi there! What can I do for you?",
			"Hey! Nice to meet you. How may I assist you?",
			"Hello! I'm here to help. What do you need?",
		},
	},
	{
		name:     "help",
		keywords: []string{"help", "support", "assist"},
		replies: []string{
			"I'm here to help! You can ask me about various topics, get information, or just have a conversation. What would you like to know?",
			"I can help you with questions, provide information, or just chat! What do you need assistance with?",
			"Sure! I can help with general questions, provide explanations, or just have a friendly conversation. What's on your mind?",
		},
	},
	{
		name:     "capability",
		keywords: []string{"what can you do", "what do you do", "capabilities", "features"},
		replies: []string{
			"I can help you with various tasks like answering questions, providing information, having conversations, helping with problem-solving, and more! Just ask me anything you'd like to know.",
		},
	},
	{
		name:     "weather",
		keywords: []string{"weather", "temperature", "rain", "sunny", "cloudy"},
		replies: []string{
			"I don't have access to real-time weather data, but I'd recommend checking a weather app or website for current conditions in your area!",
		},
	},
	{
		name:     "time",
		keywords: []string{"time", "date", "what time", "current time"},
		dynamic: func(now time.Time) string {
			return fmt.Sprintf("The current time is %s and the date is %s.",
				now.Format("3:04:05 PM"), now.Format("1/2/2006"))
		},
	},
	{
		name:     "thanks",
		keywords: []string{"thank you", "thanks", "appreciate"},
		replies: []string{
			"You're welcome! Happy to help!",
			"My pleasure! Is there anything else I can help you with?",
			"You're very welcome! Feel free to ask if you need anything else.",
			"Glad I could help! Let me know if you have more questions.",
		},
	},
	{
		name:     "goodbye",
		keywords: []string{"bye", "goodbye", "see you", "farewell", "exit", "quit"},
		replies: []string{
			"Goodbye! Have a great day!",
			"See you later! Take care!",
			"Bye! Feel free to come back anytime!",
			"Farewell! It was nice chatting with you!",
		},
	},
	{
		name:     "how_are_you",
		keywords: []string{"how are you", "how do you do", "how's it going"},
		replies: []string{
			"I'm doing great, thank you for asking! How are you doing today?",
			"I'm functioning perfectly! How can I help you today?",
			"I'm doing well! Ready to assist you with whatever you need.",
			"All systems are running smoothly! How are you doing?",
		},
	},
	{
		name:     "identity",
		keywords: []string{"what is your name", "who are you", "what's your name"},
		replies: []string{
			"I'm ChatBot Assistant, your friendly AI helper! I'm here to assist you with questions, conversations, and provide helpful information.",
		},
	},
	{
		name:     "age",
		keywords: []string{"how old are you", "what's your age", "age"},
		replies: []string{
			"I'm an AI assistant, so I don't have an age in the traditional sense! I was created to help and assist users like you.",
		},
	},
	{
		name:     "joke",
		keywords: []string{"joke", "funny", "humor", "laugh"},
		replies: []string{
			"Why don't scientists trust atoms? Because they make up everything! 😄",
			"What do you call a fake noodle? An impasta! 🍝",
			"Why did the scarecrow win an award? He was outstanding in his field! 🌾",
			"What do you call a bear with no teeth? A gummy bear! 🐻",
		},
	},
}

var defaultReplies = []string{
	"That's interesting! Can you tell me more about that?",
	"I understand. How can I help you with that?",
	"That's a great question! Let me think about that...",
	"I see what you mean. What would you like to know more about?",
	"Thanks for sharing that with me! Is there anything specific you'd like help with?",
	"I'm here to help! Could you provide a bit more detail about what you're looking for?",
	"That sounds interesting! What would you like to explore further?",
	"I'm listening! How can I assist you with this topic?",
}

// Category returns the name of the keyword category that would answer
// text, or "" when none matches.
func Category(text string) string {
	for _, rule := range rules {
		if containsAny(lowerTrim(text), rule.keywords) {
			return rule.name
		}
	}
	return ""
}
