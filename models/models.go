package models

// This file serves as the central export point for all database models
// Import this package to access all model types

// All models are automatically exported from their respective files:
// - User, RefreshToken from user.go
// - Post, PostStatus from post.go
// - SocialAccount from social_account.go
// - SocialPlatform, PlatformCapabilities from platform.go

// Database schema overview:
// 1. users - Email-based accounts, bcrypt password hashes
// 2. refresh_tokens - Hashed opaque tokens backing session refresh
// 3. social_accounts - Connected platform accounts with OAuth access tokens
// 4. posts - Draft/scheduled/published posts, each targeting one social account
