package postgres

// posts.topics и post_topics хранят одни и те же темы и пишутся в одной транзакции.
const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL DEFAULT '',
		admin BOOLEAN NOT NULL DEFAULT FALSE,
		endorsement_count INTEGER NOT NULL DEFAULT 0,
		last_posted_at TIMESTAMPTZ,
		last_commented_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS topics (
		name TEXT PRIMARY KEY
	);
	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		type TEXT NOT NULL,
		link TEXT,
		text_content TEXT,
		author_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		topics TEXT[] NOT NULL DEFAULT '{}',
		endorsement_count INTEGER NOT NULL DEFAULT 0,
		comment_count INTEGER NOT NULL DEFAULT 0,
		thumbnail_url TEXT,
		domain TEXT,
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		sticky BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_posts_topics ON posts USING GIN(topics);
	CREATE TABLE IF NOT EXISTS post_topics (
		post_id TEXT NOT NULL REFERENCES posts(id),
		topic_name TEXT NOT NULL REFERENCES topics(name),
		PRIMARY KEY (post_id, topic_name)
	);
	CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		post_id TEXT NOT NULL REFERENCES posts(id),
		parent_comment_id TEXT,
		author_id TEXT NOT NULL,
		text_content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		endorsement_count INTEGER NOT NULL DEFAULT 0,
		deleted BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
	CREATE TABLE IF NOT EXISTS endorsements (
		kind TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (kind, subject_id, user_id)
	);
	CREATE TABLE IF NOT EXISTS post_views (
		post_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		last_comment_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (post_id, user_id)
	);
	CREATE TABLE IF NOT EXISTS user_blocks (
		user_id TEXT NOT NULL,
		blocked_id TEXT NOT NULL REFERENCES users(id),
		PRIMARY KEY (user_id, blocked_id)
	);
	CREATE TABLE IF NOT EXISTS user_hidden_topics (
		user_id TEXT NOT NULL,
		topic_name TEXT NOT NULL REFERENCES topics(name),
		PRIMARY KEY (user_id, topic_name)
	);
	CREATE TABLE IF NOT EXISTS user_followed_topics (
		user_id TEXT NOT NULL,
		topic_name TEXT NOT NULL REFERENCES topics(name),
		PRIMARY KEY (user_id, topic_name)
	);
	CREATE TABLE IF NOT EXISTS user_hidden_posts (
		user_id TEXT NOT NULL,
		post_id TEXT NOT NULL REFERENCES posts(id),
		PRIMARY KEY (user_id, post_id)
	);
`
