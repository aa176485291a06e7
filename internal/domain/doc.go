// Package domain contains the core entities of the service: users, the content
// they publish (articles and workout records), the images attached to that
// content, comments, and the like/save relations between users and content.
//
// Entities are plain structs with Validate methods. They carry no persistence
// or transport concerns.
package domain
