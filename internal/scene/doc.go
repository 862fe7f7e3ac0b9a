// Package scene defines the records shared by the index, cache, watcher and
// lookup service, together with the naming rules of a project media tree:
//
//	<root>/<project>/scene_<id>/{video,audio,images}/<file>
//
// Scene targets such as "scene_02" normalise to canonical ids ("2"), scene
// order is numeric with symbolic ids last, and a scene's video is chosen by a
// fixed priority: pipeline output names, then the scene's own name, then any
// other video file.
package scene
