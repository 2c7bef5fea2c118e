// Built-in descriptors for the Stack Exchange data dump.
//
// Schema documentation:
// https://meta.stackexchange.com/questions/2677/database-schema-documentation-for-the-public-data-dump-and-sede
package schema

// Sites describes the network-wide Sites.xml dump. It has a plain integer
// primary key and no foreign keys; every other table hangs off it.
var Sites = &Table{
	Name: "sites",
	Columns: []Column{
		{Name: "id", Attr: "Id", Type: "INTEGER PRIMARY KEY"},
		{Name: "url", Attr: "Url", Type: "TEXT"},
		{Name: "tiny_name", Attr: "TinyName", Type: "TEXT"},
		{Name: "long_name", Attr: "LongName", Type: "TEXT"},
		{Name: "name", Attr: "Name", Type: "TEXT"},
		{Name: "parent_id", Attr: "ParentId", Type: "INTEGER"},
		{Name: "tagline", Attr: "Tagline", Type: "TEXT"},
		{Name: "badge_icon_url", Attr: "BadgeIconUrl", Type: "TEXT"},
	},
}

// Users describes a per-site Users.xml dump. User ids are only unique within
// a site, so the primary key is composite; site_id is internal-only and must
// be stamped by a row filter.
var Users = &Table{
	Name: "users",
	Columns: []Column{
		{Name: "id", Attr: "Id", Type: "INTEGER"},
		{Name: "site_id", Type: "INTEGER"},
		{Name: "reputation", Attr: "Reputation", Type: "INTEGER NOT NULL"},
		{Name: "creation_date", Attr: "CreationDate", Type: "TEXT"},
		{Name: "display_name", Attr: "DisplayName", Type: "TEXT"},
		{Name: "url", Attr: "WebsiteUrl", Type: "TEXT"},
		{Name: "location", Attr: "Location", Type: "TEXT"},
		{Name: "about_me", Attr: "AboutMe", Type: "TEXT"},
		{Name: "views", Attr: "Views", Type: "INTEGER"},
		{Name: "profile_image", Attr: "ProfileImageUrl", Type: "TEXT"},
		{Name: "account_id", Attr: "AccountId", Type: "INTEGER"},
		{Name: "up_votes", Attr: "UpVotes", Type: "INTEGER"},
	},
	Constraints: []string{
		"PRIMARY KEY (id, site_id)",
		"FOREIGN KEY (site_id) REFERENCES sites (id) DEFERRABLE INITIALLY DEFERRED",
	},
}

// Posts describes a per-site Posts.xml dump. Like users, the primary key is
// composite and site_id is filter-stamped. The accepted-answer linkage is a
// self-referential foreign key, and in real dumps it points forward: a
// question appears before its accepted answer. All foreign keys are declared
// deferrable so they are checked at commit, when the whole file is in.
var Posts = &Table{
	Name: "posts",
	Columns: []Column{
		{Name: "id", Attr: "Id", Type: "INTEGER"},
		{Name: "site_id", Type: "INTEGER"},
		{Name: "post_type", Attr: "PostTypeId", Type: "INTEGER NOT NULL"},
		{Name: "accepted_answer_id", Attr: "AcceptedAnswerId", Type: "INTEGER"},
		{Name: "creation_date", Attr: "CreationDate", Type: "TEXT NOT NULL"},
		{Name: "score", Attr: "Score", Type: "INTEGER NOT NULL"},
		{Name: "view_count", Attr: "ViewCount", Type: "INTEGER"},
		{Name: "body", Attr: "Body", Type: "TEXT"},
		{Name: "user_id", Attr: "OwnerUserId", Type: "INTEGER"},
		{Name: "last_activity_date", Attr: "LastActivityDate", Type: "TEXT"},
		{Name: "title", Attr: "Title", Type: "TEXT"},
		{Name: "tags", Attr: "Tags", Type: "TEXT"},
		{Name: "answer_count", Attr: "AnswerCount", Type: "INTEGER"},
		{Name: "comment_count", Attr: "CommentCount", Type: "INTEGER"},
	},
	Constraints: []string{
		"PRIMARY KEY (id, site_id)",
		"FOREIGN KEY (site_id) REFERENCES sites (id) DEFERRABLE INITIALLY DEFERRED",
		"FOREIGN KEY (user_id, site_id) REFERENCES users (id, site_id) DEFERRABLE INITIALLY DEFERRED",
		"FOREIGN KEY (accepted_answer_id, site_id) REFERENCES posts (id, site_id) DEFERRABLE INITIALLY DEFERRED",
	},
}

// Tables lists the built-in descriptors in dependency order: parents before
// children so foreign keys resolve when tables are created in sequence.
var Tables = []*Table{Sites, Users, Posts}
