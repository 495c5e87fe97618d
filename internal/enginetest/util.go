// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package enginetest

import (
	"github.com/luxfi/gmebridge"
)

var gmeConfig = gmebridge.Map{
	"server": gmebridge.Map{"port": gmebridge.Int(8888)},
	"mongo":  gmebridge.Map{"uri": gmebridge.String("mongodb://127.0.0.1:27017/multi")},
	"plugin": gmebridge.Map{"allowServerExecution": gmebridge.Bool(true)},
}

func (e *Engine) handleUtil(name string, a args) (gmebridge.Value, *engineError) {
	switch name {
	case "gmeConfig":
		return gmeConfig, nil
	case "META":
		n, h, err := e.nodeArg(a, 0, "rootNode")
		if err != nil {
			return nil, err
		}
		ns, ok, err := a.optStr(1, "namespace")
		if err != nil {
			return nil, err
		}
		if !ok {
			ns = e.namespace
		}
		out := gmebridge.Map{}
		for k, x := range metaByName(n.root(), ns) {
			out[k] = wrap(x, h)
		}
		return out, nil
	case "save":
		n, _, err := e.nodeArg(a, 0, "rootNode")
		if err != nil {
			return nil, err
		}
		parent, err := a.str(1, "commitHash")
		if err != nil {
			return nil, err
		}
		branch, hasBranch, err := a.optStr(2, "branchName")
		if err != nil {
			return nil, err
		}
		msg, err := a.str(3, "message")
		if err != nil {
			return nil, err
		}
		hash := e.persist(n.root())
		return e.makeCommit(branch, hasBranch, []string{parent}, hash, msg)
	case "unloadRoot":
		h, err := a.handle(0, "rootNode")
		if err != nil {
			return nil, err
		}
		delete(e.roots, h.RootID)
		return nil, nil
	}
	return nil, generic("Unexpected request name %s of type [util]", name)
}

func (e *Engine) handlePlugin(name string, a args) (gmebridge.Value, *engineError) {
	switch name {
	case "getCurrentConfig":
		if e.pluginConfig == nil {
			return gmebridge.Map{}, nil
		}
		return e.pluginConfig, nil
	case "sendNotification":
		msg, err := a.str(0, "message")
		if err != nil {
			return nil, err
		}
		e.result.Notifications = append(e.result.Notifications, msg)
		return nil, nil
	case "createMessage":
		_, h, err := e.nodeArg(a, 0, "node")
		if err != nil {
			return nil, err
		}
		msg, err := a.str(1, "message")
		if err != nil {
			return nil, err
		}
		severity, err := a.str(2, "severity")
		if err != nil {
			return nil, err
		}
		switch severity {
		case gmebridge.SeverityDebug, gmebridge.SeverityInfo, gmebridge.SeverityWarning, gmebridge.SeverityError:
		default:
			return nil, illegalArgument("Unknown severity '%s'.", severity)
		}
		e.result.Messages = append(e.result.Messages, Message{Node: h, Message: msg, Severity: severity})
		return nil, nil
	case "addFile":
		fname, err := a.str(0, "name")
		if err != nil {
			return nil, err
		}
		content, err := a.str(1, "content")
		if err != nil {
			return nil, err
		}
		hash := "#" + shortHash("file|"+fname+"|"+content)
		e.blobs[hash] = content
		e.result.Files[fname] = hash
		return gmebridge.String(hash), nil
	case "addArtifact":
		aname, err := a.str(0, "name")
		if err != nil {
			return nil, err
		}
		filesArg, ok := a.value(1).(gmebridge.Map)
		if !ok {
			return nil, illegalArgument("Parameter 'files' is not of type object.")
		}
		files := make(map[string]string, len(filesArg))
		key := "artifact|" + aname
		for _, k := range filesArg.Keys() {
			entry, ok := filesArg[k].(gmebridge.Map)
			if !ok {
				return nil, illegalArgument("File '%s' has no content.", k)
			}
			content, ok := entry["content"].(gmebridge.String)
			if !ok {
				return nil, illegalArgument("File '%s' has no content.", k)
			}
			files[k] = string(content)
			key += "|" + k + "=" + string(content)
		}
		hash := "#" + shortHash(key)
		e.artifacts[hash] = files
		e.result.Artifacts[aname] = hash
		return gmebridge.String(hash), nil
	case "getFile":
		hash, err := a.str(0, "metadataHash")
		if err != nil {
			return nil, err
		}
		content, ok := e.blobs[hash]
		if !ok {
			return nil, generic("Blob [%s] does not exist", hash)
		}
		return gmebridge.String(content), nil
	case "getArtifact":
		hash, err := a.str(0, "metadataHash")
		if err != nil {
			return nil, err
		}
		files, ok := e.artifacts[hash]
		if !ok {
			return nil, generic("Artifact [%s] does not exist", hash)
		}
		out := gmebridge.Map{}
		for k, v := range files {
			out[k] = gmebridge.String(v)
		}
		return out, nil
	case "resultSetSuccess":
		b, ok := a.value(0).(gmebridge.Bool)
		if !ok {
			return nil, illegalArgument("Parameter 'success' is not of type boolean.")
		}
		e.result.Success = bool(b)
		e.result.SuccessSet = true
		return nil, nil
	case "resultSetError":
		msg, err := a.str(0, "error")
		if err != nil {
			return nil, err
		}
		e.result.Error = msg
		return nil, nil
	}
	return nil, generic("Unexpected request name %s of type [plugin]", name)
}
